package main

import (
	"github.com/smallbiznis/spotlight/internal/app"
	"go.uber.org/fx"
)

func main() {
	fx.New(app.Scheduler()).Run()
}
