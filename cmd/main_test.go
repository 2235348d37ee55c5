package main

import (
	"testing"
)

func TestNewApp(t *testing.T) {
	t.Parallel()

	app := newApp()
	if app.Name != "uwisp" {
		t.Errorf("app name = %q; want uwisp", app.Name)
	}

	want := map[string]bool{"serve": false, "version": false}
	for _, cmd := range app.Commands {
		if _, ok := want[cmd.Name]; ok {
			want[cmd.Name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q missing", name)
		}
	}
}
