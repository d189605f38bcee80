package main

//go:generate swag init -g cmd/server/main.go -o docs

// @title           Blink Battle Settlement API
// @version         0.1.0
// @description     Match settlement, stake escrow and payment reconciliation.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
