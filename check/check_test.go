package check

import (
	"testing"

	"github.com/exograd/go-influxdb/jsonpointer"
	"github.com/stretchr/testify/assert"
)

type testUnit string

var testUnitValues = []testUnit{"ms", "s"}

type testBatchCfg struct {
	Size int
	Unit testUnit
}

func (cfg *testBatchCfg) Check(c *Checker) {
	c.CheckIntMin("size", cfg.Size, 1)
	c.CheckStringValue("unit", cfg.Unit, testUnitValues)
}

type testClientCfg struct {
	URI   string
	Batch *testBatchCfg
	Tags  []string
}

func (cfg *testClientCfg) Check(c *Checker) {
	c.CheckStringURI("uri", cfg.URI)
	c.CheckOptionalObject("batch", cfg.Batch)

	c.WithChild("tags", func() {
		for i, tag := range cfg.Tags {
			c.CheckStringNotEmpty(i, tag)
		}
	})
}

type testRootCfg struct {
	Client *testClientCfg
}

func (cfg *testRootCfg) Check(c *Checker) {
	c.CheckObject("client", cfg.Client)
}

func TestCheckerScalars(t *testing.T) {
	assert := assert.New(t)

	c := NewChecker()
	assert.True(c.CheckIntMin("t", 42, 1))
	assert.False(c.CheckIntMin("t", 0, 1))
	assert.True(c.CheckStringNotEmpty("t", "foo"))
	assert.False(c.CheckStringNotEmpty(3, ""))
	assert.True(c.CheckStringValue("t", testUnit("s"), testUnitValues))
	assert.False(c.CheckStringValue("t", testUnit("h"), testUnitValues))

	if assert.Equal(3, len(c.Errors)) {
		assert.Equal(jsonpointer.Pointer{"t"}, c.Errors[0].Pointer)
		assert.Equal(jsonpointer.Pointer{"3"}, c.Errors[1].Pointer)
		assert.Equal("value must be one of the following strings: ms, s",
			c.Errors[2].Message)
	}
}

func TestCheckerURI(t *testing.T) {
	assert := assert.New(t)

	tests := []struct {
		uri   string
		valid bool
	}{
		{"http://localhost:8086", true},
		{"https://influx.example.com/prefix", true},
		{"", false},
		{"localhost:8086", false},
		{"udp://localhost:8089", false},
	}

	for _, test := range tests {
		c := NewChecker()
		assert.Equal(test.valid, c.CheckStringURI("uri", test.uri), test.uri)
	}
}

func TestCheckerObjects(t *testing.T) {
	assert := assert.New(t)

	var err error

	err = Validate(&testRootCfg{
		Client: &testClientCfg{
			URI:   "http://localhost:8086",
			Batch: &testBatchCfg{Size: 10, Unit: "ms"},
			Tags:  []string{"a", "b"},
		},
	})
	assert.NoError(err)

	err = Validate(&testRootCfg{
		Client: &testClientCfg{URI: "http://localhost:8086"},
	})
	assert.NoError(err)

	err = Validate(&testRootCfg{})
	if assert.Error(err) {
		errs := err.(ValidationErrors)
		if assert.Equal(1, len(errs)) {
			assert.Equal(jsonpointer.Pointer{"client"}, errs[0].Pointer)
			assert.Equal("/client: missing value", errs[0].Error())
		}
	}

	err = Validate(&testRootCfg{
		Client: &testClientCfg{
			URI:   "http://localhost:8086",
			Batch: &testBatchCfg{Size: 0, Unit: "ms"},
			Tags:  []string{"a", ""},
		},
	})
	if assert.Error(err) {
		errs := err.(ValidationErrors)
		if assert.Equal(2, len(errs)) {
			assert.Equal(jsonpointer.Pointer{"client", "batch", "size"},
				errs[0].Pointer)
			assert.Equal(jsonpointer.Pointer{"client", "tags", "1"},
				errs[1].Pointer)
		}
	}
}
