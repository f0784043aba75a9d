// Package static embeds the dashboard page shipped inside the server
// binary, so a deployment is one file plus a database.
package static

import (
	_ "embed"
)

//go:embed index.html
var IndexHTML []byte
