package main

import (
	"bytes"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesh/internal/device"
	"github.com/srg/blesh/internal/testutils"
	"github.com/srg/blesh/pkg/config"
)

// TestDeviceID is the address of testutils.DefaultPeripheral
const TestDeviceID = "AA:BB:CC:DD:EE:FF"

// fastConfig keeps settling delays short so CLI tests run in milliseconds
const fastConfig = `
scan:
  timeout: 50ms
session:
  pre_scan_settle: 0s
  pre_connect_rescan: 20ms
  post_disconnect_settle: 0s
`

// CommandTestSuite runs the real command tree against the mock radio.
// All cmd/blesh test suites should embed this instead of MockRadioSuite.
type CommandTestSuite struct {
	testutils.MockRadioSuite

	configPath       string
	originalProvider func(*logrus.Logger, *config.Config) device.Provider
}

func (s *CommandTestSuite) SetupTest() {
	s.MockRadioSuite.SetupTest()

	s.configPath = testutils.WriteTempScript(s.T(), "blesh.yaml", fastConfig)
	s.originalProvider = newProvider
	newProvider = func(*logrus.Logger, *config.Config) device.Provider {
		return s.NewProvider()
	}
}

func (s *CommandTestSuite) TearDownTest() {
	newProvider = s.originalProvider
	s.MockRadioSuite.TearDownTest()
}

// ExecuteCommand runs blesh with args and stdin, returns stdout, stderr and the error
func (s *CommandTestSuite) ExecuteCommand(stdin string, args ...string) (string, string, error) {
	root := newRootCmd()

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append(args, "--config", s.configPath))

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
