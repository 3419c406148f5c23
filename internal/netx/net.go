// Package netx fetches attachment references so they can be saved locally.
package netx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
)

// Download copies the content behind ref into w. http(s) references are
// fetched with client (http.DefaultClient when nil); file:// references, as
// produced by the local blob store, are read from disk.
func Download(ctx context.Context, client *http.Client, ref string, w io.Writer) (int64, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", ref, err)
	}

	switch u.Scheme {
	case "file":
		f, err := os.Open(u.Path)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		return io.Copy(w, f)

	case "http", "https":
		if client == nil {
			client = http.DefaultClient
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return 0, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return 0, fmt.Errorf("download failed: %s; body: %s", resp.Status, string(b))
		}
		return io.Copy(w, resp.Body)

	default:
		return 0, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}
