package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/seamprofile/internal/seam"
	"github.com/banshee-data/seamprofile/internal/testutil"
)

func registers(t *testing.T, env *testEnv, target string) RegistersResponse {
	t.Helper()
	rec := testutil.Serve(env.mux, http.MethodGet, target, "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var resp RegistersResponse
	testutil.DecodeJSON(t, rec, &resp)
	return resp
}

func TestListRegisters(t *testing.T) {
	env := setupTestServer(t)
	code, _ := env.do(http.MethodGet, "/registers", "")
	assert.Equal(t, http.StatusNotFound, code)

	// every register of profile 1 holds 10, so each mask is 0b1010
	require.NoError(t, env.store.LoadAndSwitch(context.Background(), 1))

	all := registers(t, env, "/registers")
	assert.Equal(t, int32(1), all.ProfileID)
	assert.Equal(t, int32(10), all.JointType)
	assert.Equal(t, int32(10), all.JointTypeMinor)
	require.Len(t, all.Registers, seam.NumRegisters)
	assert.Equal(t, "0x0000000A", all.Registers[0].Hex)

	xp := registers(t, env, "/registers?partition=xp")
	require.Len(t, xp.Registers, 30)
	require.NotNil(t, xp.Registers[1].Enabled)
	assert.True(t, *xp.Registers[1].Enabled)
	assert.False(t, *xp.Registers[2].Enabled)
	assert.True(t, *xp.Registers[3].Enabled)

	vp := registers(t, env, "/registers?partition=VP")
	require.Len(t, vp.Registers, 60)
	assert.Equal(t, seam.VPAngleMin, vp.Registers[0].Index)
	assert.False(t, vp.Registers[31].Reserved)
	assert.True(t, vp.Registers[32].Reserved)
	assert.True(t, vp.Registers[47].Reserved)
	assert.False(t, vp.Registers[48].Reserved)

	sf := registers(t, env, "/registers?partition=SF")
	require.Len(t, sf.Registers, 10)
	assert.Equal(t, "SF", sf.Registers[0].Partition)
	assert.Nil(t, sf.Registers[0].Enabled, "SF has no enable mask")
}

func TestListRegistersOfLoadedProfile(t *testing.T) {
	env := setupTestServer(t)
	_, err := env.store.Load(context.Background(), 2)
	require.NoError(t, err)

	resp := registers(t, env, "/registers?id=2&partition=KP")
	assert.Equal(t, int32(2), resp.ProfileID)
	assert.Equal(t, int32(20), resp.Registers[0].Int)
	assert.Equal(t, 30, resp.Registers[0].Index)
	assert.Equal(t, 0, resp.Registers[0].Local)

	code, _ := env.do(http.MethodGet, "/registers?id=1", "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = env.do(http.MethodGet, "/registers?id=2&partition=ZZ", "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = env.do(http.MethodDelete, "/registers", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestWriteRegister(t *testing.T) {
	env := setupTestServer(t)
	code, _ := env.do(http.MethodPost, "/registers", `{"index": 3, "int": 1}`)
	assert.Equal(t, http.StatusNotFound, code)

	require.NoError(t, env.store.LoadAndSwitch(context.Background(), 0))

	rec := testutil.Serve(env.mux, http.MethodPost, "/registers", `{"index": 3, "float": 0.75}`)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var view RegisterView
	testutil.DecodeJSON(t, rec, &view)
	assert.Equal(t, "0x3F400000", view.Hex)
	assert.Equal(t, "0.75", view.Float)
	f, err := env.store.Current().Table().Float(seam.XPLaserStrength)
	require.NoError(t, err)
	assert.Equal(t, float32(0.75), f)

	rec = testutil.Serve(env.mux, http.MethodPost, "/registers", `{"partition": "oc", "local": 9, "int": -2}`)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	testutil.DecodeJSON(t, rec, &view)
	assert.Equal(t, seam.OCTrackingArea, view.Index)
	assert.Equal(t, int32(-2), view.Int)
	assert.Equal(t, "0xFFFFFFFE", view.Hex)

	tests := map[string]string{
		"both values":   `{"index": 1, "int": 1, "float": 1}`,
		"no value":      `{"index": 1}`,
		"index range":   `{"index": 250, "int": 1}`,
		"local range":   `{"partition": "KP", "local": 30, "int": 1}`,
		"no address":    `{"int": 1}`,
		"two addresses": `{"index": 1, "partition": "XP", "int": 1}`,
		"unknown key":   `{"index": 1, "int": 1, "bits": 4}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			code, _ := env.do(http.MethodPost, "/registers", body)
			assert.Equal(t, http.StatusBadRequest, code)
		})
	}
}
