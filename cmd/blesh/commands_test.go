package main

import (
	"io"
	"strings"
	"testing"

	"github.com/srg/blesh/internal/session"
	"github.com/srg/blesh/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type CommandsTestSuite struct {
	CommandTestSuite
}

func TestCommandsTestSuite(t *testing.T) {
	suite.Run(t, new(CommandsTestSuite))
}

func (s *CommandsTestSuite) TestScan() {
	s.Run("table", func() {
		stdout, _, err := s.ExecuteCommand("", "scan", "-d", "30ms")
		s.Require().NoError(err)

		testutils.AssertText(s.T(), `
NAME        ID                 RSSI
----        --                 ----
ESP32-Test  AA:BB:CC:DD:EE:FF  -42 dBm
`, stdout)
	})

	s.Run("json", func() {
		stdout, _, err := s.ExecuteCommand("", "scan", "--format", "json")
		s.Require().NoError(err)

		testutils.AssertJSON(s.T(), `[
			{"id": "AA:BB:CC:DD:EE:FF", "name": "ESP32-Test", "address": "AA:BB:CC:DD:EE:FF", "rssi": -42}
		]`, stdout, testutils.WithStrictKeys())
	})

	s.Run("invalid format", func() {
		_, _, err := s.ExecuteCommand("", "scan", "-f", "xml")
		s.ErrorContains(err, "invalid format 'xml'")
	})
}

func (s *CommandsTestSuite) TestInspect() {
	// GOAL: Verify inspect lists every characteristic through the embedded Lua script
	//
	// TEST SCENARIO: inspect default peripheral → device header and three characteristics printed

	stdout, _, err := s.ExecuteCommand("", "inspect", TestDeviceID)
	s.Require().NoError(err)

	testutils.AssertText(s.T(), `
Device: ESP32-Test (AA:BB:CC:DD:EE:FF)
Characteristics: 3
  UUID: 00002a19-0000-1000-8000-00805f9b34fb | Properties: READ, NOTIFY
  UUID: 6e400002-b5a3-f393-e0a9-e50e24dcca9e | Properties: WRITE
  UUID: 6e400003-b5a3-f393-e0a9-e50e24dcca9e | Properties: READ, NOTIFY
`, stdout)

	s.Run("unknown device", func() {
		_, _, err := s.ExecuteCommand("", "inspect", "11:22:33:44:55:66")
		s.ErrorContains(err, "device not found: 11:22:33:44:55:66")
	})
}

func (s *CommandsTestSuite) TestRead() {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"explicit short uuid", []string{"read", TestDeviceID, "2A19"}, "50\n"},
		{"explicit full uuid", []string{"read", TestDeviceID, "6e400003-b5a3-f393-e0a9-e50e24dcca9e"}, "ready\n"},
		{"auto-selected", []string{"read", TestDeviceID}, "50\n"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			stdout, _, err := s.ExecuteCommand("", tt.args...)
			s.Require().NoError(err)
			s.Equal(tt.expected, stdout)
		})
	}
}

func (s *CommandsTestSuite) TestWrite() {
	uartRX := "6e400002-b5a3-f393-e0a9-e50e24dcca9e"

	s.Run("text", func() {
		stdout, _, err := s.ExecuteCommand("", "write", TestDeviceID, "héllo")
		s.Require().NoError(err)
		s.Equal("Wrote 6 bytes\n", stdout, "write MUST report the UTF-8 byte count")
		s.Equal([]byte("héllo"), s.Peripherals[0].Value(uartRX))
	})

	s.Run("hex", func() {
		stdout, _, err := s.ExecuteCommand("", "write", TestDeviceID, "01 ff", uartRX, "--hex")
		s.Require().NoError(err)
		s.Equal("Wrote 2 bytes\n", stdout)
		s.Equal([]byte{0x01, 0xff}, s.Peripherals[0].Value(uartRX))
	})

	s.Run("invalid hex", func() {
		_, _, err := s.ExecuteCommand("", "write", TestDeviceID, "zz", "--hex")
		s.ErrorIs(err, ErrInvalidHex)
	})

	s.Run("unknown characteristic", func() {
		_, _, err := s.ExecuteCommand("", "write", TestDeviceID, "x", "ffff")
		s.ErrorIs(err, session.ErrCharacteristicNotFound, "an unmatched UUID MUST NOT fall back to auto-select")
		s.Contains(FormatUserError(err), "blesh inspect")
	})
}

func (s *CommandsTestSuite) TestShell() {
	// GOAL: Verify the shell runs positional and JSON lines against one session
	//
	// TEST SCENARIO: init → connect → read → list → unknown command → exit → later lines ignored

	input := `init
connect AA:BB:CC:DD:EE:FF

# comments are skipped
read 2A19
chars
bogus
exit
read
`
	stdout, _, err := s.ExecuteCommand(input, "shell")
	s.Require().NoError(err)

	testutils.AssertText(s.T(), `
Bluetooth initialized successfully
Connected to ESP32-Test
50
UUID: 00002a19-0000-1000-8000-00805f9b34fb | Properties: READ, NOTIFY
UUID: 6e400002-b5a3-f393-e0a9-e50e24dcca9e | Properties: WRITE
UUID: 6e400003-b5a3-f393-e0a9-e50e24dcca9e | Properties: READ, NOTIFY
ERROR [InvalidCommand]: invalid command "bogus": unknown command
`, stdout)

	s.Run("json output", func() {
		input := `{"command": "isConnected"}
init
status
`
		stdout, _, err := s.ExecuteCommand(input, "shell", "--json")
		s.Require().NoError(err)

		lines := splitLines(stdout)
		s.Require().Len(lines, 3)
		testutils.AssertJSON(s.T(), `{"ok": false, "kind": "NotInitialized", "error": "bluetooth not initialized, call init first"}`,
			lines[0], testutils.WithStrictKeys())
		testutils.AssertJSON(s.T(), `{"ok": true, "result": "Bluetooth initialized successfully"}`, lines[1], testutils.WithStrictKeys())
		testutils.AssertJSON(s.T(), `{"ok": true, "result": {"initialized": true, "connected": false, "device": null, "characteristics": 0}}`,
			lines[2], testutils.WithStrictKeys())
	})

	s.Run("help", func() {
		stdout, _, err := s.ExecuteCommand("help\n", "shell")
		s.Require().NoError(err)
		s.Contains(stdout, "write <data> [charUuid]")
		s.Contains(stdout, "exit")
	})
}

func (s *CommandsTestSuite) TestRun() {
	script := testutils.WriteTempScript(s.T(), "session.lua", `
assert(ble.init())
assert(ble.connect(arg.device))
print(ble.read("6e400003-b5a3-f393-e0a9-e50e24dcca9e"))
print(ble.is_connected())
`)

	stdout, _, err := s.ExecuteCommand("", "run", script, "device="+TestDeviceID)
	s.Require().NoError(err)
	testutils.AssertText(s.T(), "ready\tnil\ntrue\tnil", stdout)

	s.Run("invalid argument", func() {
		_, _, err := s.ExecuteCommand("", "run", script, "device")
		s.ErrorContains(err, "expected key=value")
	})

	s.Run("script error", func() {
		broken := testutils.WriteTempScript(s.T(), "broken.lua", "error('boom')")
		_, _, err := s.ExecuteCommand("", "run", broken)
		s.ErrorContains(err, "boom")
	})
}

func (s *CommandsTestSuite) TestRunExampleScript() {
	content, err := testutils.LoadScript("examples/uart_echo.lua")
	s.Require().NoError(err)
	script := testutils.WriteTempScript(s.T(), "uart_echo.lua", content)

	stdout, _, err := s.ExecuteCommand("", "run", script, "device="+TestDeviceID, "text=hi", "polls=2")
	s.Require().NoError(err)

	testutils.AssertText(s.T(), "sent 3 bytes\n50", stdout)
	s.Equal([]byte("hi\n"), s.Peripherals[0].Value("6e400002-b5a3-f393-e0a9-e50e24dcca9e"))
}

func (s *CommandsTestSuite) TestBridgeUnknownDevice() {
	_, _, err := s.ExecuteCommand("", "bridge", "11:22:33:44:55:66")
	s.ErrorIs(err, session.ErrDeviceNotFound, "bridge MUST fail before opening a PTY when the device is unknown")
}

func (s *CommandsTestSuite) TestGlobalFlags() {
	s.Run("invalid log level", func() {
		_, _, err := s.ExecuteCommand("", "scan", "--log-level", "loud")
		s.ErrorContains(err, "invalid log level: loud")
	})

	s.Run("missing config", func() {
		root := newRootCmd()
		root.SetOut(io.Discard)
		root.SetErr(io.Discard)
		root.SetArgs([]string{"scan", "--config", "/nonexistent/blesh.yaml"})
		s.ErrorContains(root.Execute(), "failed to read config")
	})

	s.Run("verbose logs go to stderr", func() {
		stdout, stderr, err := s.ExecuteCommand("", "read", TestDeviceID, "2A19", "--verbose")
		s.Require().NoError(err)
		s.Equal("50\n", stdout, "logs MUST NOT leak into stdout")
		s.Contains(stderr, "level=info")
	})
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
