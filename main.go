package main

import "github.com/petclinic/auth-service/cmd"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// @title        PetClinic Auth Service API
// @version      1.0
// @description  Session tokens, account verification, password reset and account administration.
// @BasePath     /
func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
