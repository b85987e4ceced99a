package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/subext/pkg/errorbank"
)

const payload = `{"action":"Create","resource":{"typeId":"order","id":"order-1","obj":{"id":"order-1","customerId":"c-1","lineItems":[]}}}`

func TestRootCommandHasSubcommands(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"start", "worker", "migrate", "handle", "enqueue"}, names)
}

func TestReadPayload(t *testing.T) {
	req, err := readPayload(strings.NewReader(payload), "-")
	require.NoError(t, err)
	assert.Equal(t, "Create", req.Action)
	assert.Equal(t, "order-1", req.Resource.ID)

	path := filepath.Join(t.TempDir(), "order.json")
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))
	req, err = readPayload(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "c-1", req.Resource.Obj.CustomerID)

	_, err = readPayload(strings.NewReader(`{"action":"Create"}`), "")
	assert.Equal(t, errorbank.KindInvalidInput, errorbank.From(err).Kind())
}

func TestWriteResult(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeResult(&out, nil, nil))
	assert.JSONEq(t, `{"actions":[]}`, out.String())

	out.Reset()
	err := writeResult(&out, nil, errorbank.UnsupportedAction("Update action is not supported"))
	require.EqualError(t, err, "extension responded 400")
	assert.JSONEq(t, `{"errors":[{"code":"UnsupportedAction","message":"Update action is not supported"}]}`, out.String())
}
