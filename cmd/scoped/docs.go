package main

// General API documentation for swaggo. Run `swag init -g cmd/scoped/docs.go` to generate docs.
//
// @title           scoped API
// @version         1.0
// @description     HTTP API for real-time video pipeline sessions: pipeline lifecycle, WebRTC negotiation and status.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
