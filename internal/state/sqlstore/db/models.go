package db

type BotState struct {
	ID        string
	Document  string
	UpdatedAt string
}
