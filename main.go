package main

import "github.com/tunnelgate/gateway/cmd/gateway"

// version can be set during build with -ldflags.
var version = "dev"

func main() {
	gateway.SetVersion(version)
	gateway.Execute()
}
