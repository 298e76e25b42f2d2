package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           studiolauncher API
// @version         1.0
// @description     Health, readiness and status endpoints served by the bundled launcher.
//
// @BasePath  /
//
// @schemes http
