package netlist

import (
	"testing"

	"github.com/edp1096/toy-mna/pkg/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const motorNetlist = `DC motor on a 5V rail
* supply
V1 vcc 0 dc 5
R1 vcc m1 100m
M1 m1 0 5000 1 100n
+ 500n 500u
D1 m1 0 DMOD
.model DMOD D(is=2e-14 n=1.5)
.tran 10u 50m
.options method=tr temp=50
.end
`

func TestParse(t *testing.T) {
	data, err := Parse(motorNetlist)
	require.NoError(t, err)

	assert.Equal(t, "DC motor on a 5V rail", data.Title)
	require.Len(t, data.Elements, 4)

	r := data.Elements[1]
	assert.Equal(t, "R", r.Type)
	assert.Equal(t, []string{"vcc", "m1"}, r.Nodes)
	assert.Equal(t, []string{"0.1"}, r.Tokens)

	m := data.Elements[2]
	assert.Equal(t, "M", m.Type)
	assert.Equal(t, []string{"5000", "1", "1e-07", "5e-07", "0.0005"}, m.Tokens)

	d := data.Elements[3]
	assert.Equal(t, []string{"2e-14", "1.5"}, d.Tokens)

	assert.True(t, data.HasTran)
	assert.InDelta(t, 10e-6, data.TranParam.TStep, 1e-18)
	assert.InDelta(t, 50e-3, data.TranParam.TStop, 1e-15)
	assert.Equal(t, "tr", data.Options["method"])
	assert.Equal(t, "50", data.Options["temp"])
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"unknown element":  "t\nX1 1 2 3 model\n",
		"short transistor": "t\nQ1 c b\n",
		"model mismatch":   "t\nQ1 c b 0 DM\n.model DM D(is=1n)\n",
		"short element":    "t\nR1 1\n",
		"bad tran":         "t\n.tran 1u\n",
		"reversed tran":    "t\n.tran 1u 0\n",
		"ac analysis":      "t\n.ac dec 10 1 1k\n",
		"bad option":       "t\n.options method\n",
		"unknown model":    "t\nD1 1 0 NOPE\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(input)
			assert.Error(t, err)
		})
	}
}

func TestParseTransistor(t *testing.T) {
	data, err := Parse("amp\nQ1 c b e QP\nQ2 c2 b2 0 NPN 1f 200\n.model QP PNP(bf=50 vaf=0)\n.end\n")
	require.NoError(t, err)
	require.Len(t, data.Elements, 2)

	q1 := data.Elements[0]
	assert.Equal(t, "Q", q1.Type)
	assert.Equal(t, []string{"c", "b", "e"}, q1.Nodes)
	assert.Equal(t, []string{"pnp", "1e-16", "50", "1", "0", "1", "1"}, q1.Tokens)

	dev, err := CreateDevice(data.Elements[1])
	require.NoError(t, err)
	bjt := dev.(*device.Bjt)
	assert.False(t, bjt.Pnp)
	assert.Equal(t, 1e-15, bjt.Is)
	assert.Equal(t, 200.0, bjt.Bf)
	assert.Equal(t, 1.0, bjt.Br)
}

func TestParseValue(t *testing.T) {
	cases := map[string]float64{
		"1k":      1e3,
		"4.7K":    4.7e3,
		"10u":     10e-6,
		"2meg":    2e6,
		"10MEG":   10e6,
		"10M":     10e-3,
		"1e-3":    1e-3,
		"5":       5,
		"-3.3":    -3.3,
		"100ns":   100e-9,
		"1uF":     1e-6,
		"3mH":     3e-3,
		"5V":      5,
		"2A":      2,
		"10Ohm":   10,
		"2.2kOhm": 2.2e3,
		"1f":      1e-15,
	}
	for in, want := range cases {
		got, err := ParseValue(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"abc", "1x", "1kk", "meg"} {
		_, err := ParseValue(bad)
		assert.Error(t, err, bad)
	}
}

func TestScaledValuesReachDevice(t *testing.T) {
	data, err := Parse("t\nR1 1 0 10MEG\nR2 1 0 10M\nC1 1 0 1uF\n")
	require.NoError(t, err)

	want := []string{"1e+07", "0.01", "1e-06"}
	for i, elem := range data.Elements {
		assert.Equal(t, []string{want[i]}, elem.Tokens, elem.Name)
	}

	dev, err := CreateDevice(data.Elements[0])
	require.NoError(t, err)
	assert.Equal(t, 10e6, dev.(*device.Resistor).Resistance)
}

func TestLenientTokensReachDevice(t *testing.T) {
	data, err := Parse("t\nM1 a 0 1200 x 1\n")
	require.NoError(t, err)

	dev, err := CreateDevice(data.Elements[0])
	require.NoError(t, err)
	motor := dev.(*device.Motor)
	assert.Equal(t, 1200.0, motor.Kv)
	assert.Equal(t, 1.0, motor.Resistance)
	assert.Equal(t, 100e-9, motor.Inertia)
}

func TestExportRoundTrip(t *testing.T) {
	data, err := Parse(motorNetlist)
	require.NoError(t, err)

	var devices []device.Device
	for _, elem := range data.Elements {
		dev, err := CreateDevice(elem)
		require.NoError(t, err)
		devices = append(devices, dev)
	}
	devices = append(devices,
		device.NewVoltageSource("V2", []string{"a", "0"}, device.PulseWaveform(0, 5, 1e-3, 1e-6, 1e-6, 5e-4, 1e-3)),
		device.NewCapacitor("C1", []string{"a", "0"}, 4.7e-6),
		device.NewBJT("Q1", []string{"a", "b", "0"}),
	)

	text := Export(data.Title, devices, &data.TranParam)
	again, err := Parse(text)
	require.NoError(t, err)

	assert.Equal(t, data.Title, again.Title)
	assert.Equal(t, data.TranParam, again.TranParam)
	require.Len(t, again.Elements, len(devices))
	for i, elem := range again.Elements {
		dev, err := CreateDevice(elem)
		require.NoError(t, err)
		assert.Equal(t, devices[i].GetName(), dev.GetName())
		assert.Equal(t, devices[i].GetNodeNames(), dev.GetNodeNames())
		assert.Equal(t, devices[i].SerializeParameters(), dev.SerializeParameters(), elem.Name)
	}
}
