package upstream

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"strings"
)

const redacted = "<redacted>"

func (c *Client) dumpUpstreamRequest(req *http.Request) {
	if c == nil || !c.Debug || req == nil {
		return
	}
	clone := req.Clone(req.Context())
	if clone.Header.Get("Cookie") != "" {
		clone.Header.Set("Cookie", redacted)
	}
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err == nil {
			clone.Body = body
		}
	}
	dump, err := httputil.DumpRequestOut(clone, true)
	if err != nil {
		slog.Error("upstream.request.dump.failed", "error", err)
		return
	}
	c.writeDebugDumpBlock("UPSTREAM REQUEST", dump)
}

func (c *Client) dumpUpstreamResponse(resp *http.Response, body []byte) {
	if c == nil || !c.Debug || resp == nil {
		return
	}
	headerDump, err := httputil.DumpResponse(resp, false)
	if err != nil {
		slog.Error("upstream.response.dump.failed", "error", err)
	} else {
		c.writeDebugDumpBlock("UPSTREAM RESPONSE", headerDump)
	}
	c.writeDebugDumpBlock(fmt.Sprintf("UPSTREAM RESPONSE BODY status=%d", resp.StatusCode), body)
}

func (c *Client) writeDebugDumpBlock(title string, data []byte) {
	c.dumpMu.Lock()
	defer c.dumpMu.Unlock()

	w := c.dumpWriter()
	header := "===== " + strings.TrimSpace(title) + " BEGIN =====\n"
	footer := "===== " + strings.TrimSpace(title) + " END =====\n"

	if _, err := w.Write([]byte(header)); err != nil {
		slog.Error("upstream.dump.write.failed", "title", title, "error", err)
		return
	}
	if len(data) > 0 {
		if _, err := w.Write(data); err != nil {
			slog.Error("upstream.dump.write.failed", "title", title, "error", err)
			return
		}
		if data[len(data)-1] != '\n' {
			w.Write([]byte("\n"))
		}
	}
	if _, err := w.Write([]byte(footer)); err != nil {
		slog.Error("upstream.dump.write.failed", "title", title, "error", err)
	}
}
