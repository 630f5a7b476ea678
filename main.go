package main

import (
	"net/http"

	"github.com/craftauth/craftauth/cmd"
	"github.com/craftauth/craftauth/internals/ownhttp"
)

// set by goreleaser
var version = "dev"

func main() {
	// replace default http client
	http.DefaultClient = ownhttp.New()

	cmd.Version = version
	cmd.Execute()
}
