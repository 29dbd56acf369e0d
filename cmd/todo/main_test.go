package main

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"todo/internal/testutil"
)

func TestMain(m *testing.M) {
	testscript.Main(m, map[string]func(){
		"todo": main,
	})
}

// TestScripts runs the CLI binary against an in-process API server seeded
// with the account ana@example.com / secret.
func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata/script",
		Setup: func(env *testscript.Env) error {
			svc := testutil.NewFakeService()
			svc.AddUser("ana@example.com", "secret")
			srv := httptest.NewServer(testutil.NewAPIHandler(svc))
			env.Defer(srv.Close)

			home := filepath.Join(env.WorkDir, "home")
			if err := os.MkdirAll(home, 0o755); err != nil {
				return err
			}
			env.Setenv("HOME", home)
			env.Setenv("XDG_CONFIG_HOME", filepath.Join(env.WorkDir, "config"))
			env.Setenv("TODO_API_URL", srv.URL)
			return nil
		},
	})
}
