package app

import (
	"testing"

	"github.com/smallbiznis/spotlight/internal/scheduler"
	"github.com/smallbiznis/spotlight/internal/server"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestGraphsResolve(t *testing.T) {
	cases := map[string]fx.Option{
		"api":       fx.Options(API(), fx.Invoke(func(*server.Server) {})),
		"scheduler": fx.Options(Scheduler(), fx.Invoke(func(*scheduler.Scheduler) {})),
		"all":       All(),
	}
	for name, opt := range cases {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, fx.ValidateApp(opt))
		})
	}
}
