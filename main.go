package main

import (
	"os"

	"github.com/dinesh-gnapitech/insite/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
