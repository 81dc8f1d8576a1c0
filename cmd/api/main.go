package main

import "curator/internal/app"

func main() {
	app.Run()
}
