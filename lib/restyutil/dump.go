// Package restyutil dumps resty traffic for offline debugging of portal
// markup changes.
package restyutil

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// DumpResponses writes every completed exchange made by client to output,
// with each string in redact masked. Message ids are "<n>-<method>.txt".
func DumpResponses(client *resty.Client, output Output, redact ...string) {
	if output == nil {
		return
	}
	replacements := []string{}
	for _, r := range redact {
		if r != "" {
			replacements = append(replacements, r, "***")
		}
	}
	replacer := strings.NewReplacer(replacements...)

	var idcounter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := atomic.AddUint64(&idcounter, 1)
		output.Write(
			fmt.Sprintf("%03d-%s.txt", id, strings.ToLower(res.Request.Method)),
			replacer.Replace(formatHttpMessage(res)),
		)
		return nil
	})
}
