// The bookqa binary serves grounded question answering over an indexed book.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/bookqa/cmd/bookqa/app"
)

func main() {
	app.NewApp().Run()
}
