package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"method-bridge/bridge"
	"method-bridge/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestMethodsCommand(t *testing.T) {
	out, err := run(t, "methods")
	require.NoError(t, err)
	assert.Equal(t, []string{"getInteger", "getStringOfLength", "toUpperCase", "max"}, strings.Fields(out))
}

func TestInvokeCommand(t *testing.T) {
	svr := server.NewServer(bridge.NewDispatcher())
	go svr.Serve("tcp", "127.0.0.1:0", "", nil)
	t.Cleanup(func() { svr.Shutdown(time.Second) })
	addr := svr.Addr().String()

	out, err := run(t, "invoke", "--addr", addr, "max", "[1,5,3,9,2,8,4,7]")
	require.NoError(t, err)
	assert.Equal(t, "9", strings.TrimSpace(out))

	out, err = run(t, "invoke", "--addr", addr, "getStringOfLength", "5")
	require.NoError(t, err)
	assert.Equal(t, `"zzzzz"`, strings.TrimSpace(out))

	_, err = run(t, "invoke", "--addr", addr, "getStringOfLength")
	assert.ErrorIs(t, err, bridge.ErrInvalidArgument)

	_, err = run(t, "invoke", "--addr", addr, "max", "[1,2")
	assert.Error(t, err)
}
