// Package ui serves the upload form for matching two files in the browser.
package ui

import (
	"fmt"
	"io/fs"
	"net/http"
)

// Handler serves the files under dist/.
func Handler() (http.Handler, error) {
	dist, err := fs.Sub(DistFS(), "dist")
	if err != nil {
		return nil, fmt.Errorf("open ui dist: %w", err)
	}
	return http.FileServerFS(dist), nil
}
