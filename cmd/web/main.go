package main

import "reviewhub_backend/internal/app"

func main() {
	app.Run()
}
