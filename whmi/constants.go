package whmi

import (
	"fmt"
	"time"
)

// Response bytes.
const (
	// Ack is sent by the display after the whmi-wri command and after each chunk.
	Ack byte = 0x05
	// PageAck is present in the sendme reply while the display shows the ready page.
	PageAck byte = 0x07
	// ReturnByte terminates every display reply; it acknowledges the UPDATED text.
	ReturnByte byte = 0xFF
)

// Protocol baud rates.
const (
	// BaudPowerOn is the factory default baud of a Nextion display.
	BaudPowerOn = 9600
	// BaudDefault is the baud the display is reset to after an update.
	BaudDefault = 115200

	BaudUpload921600  = 921600
	BaudUpload1200000 = 1200000
	BaudUpload2921600 = 2921600
)

// ChunkSize is the largest firmware slice sent as one frame.
const ChunkSize = 4096

// Default wait timeouts.
const (
	DefaultHandshakeTimeout = 1000 * time.Millisecond
	DefaultAckTimeout       = 1000 * time.Millisecond
	DefaultFinalTimeout     = 10 * time.Second
	DefaultProbeTimeout     = 500 * time.Millisecond
	DefaultAnnounceTimeout  = 1000 * time.Millisecond
)

// Terminator ends every text command.
const Terminator = "0xFF0xFF0xFF"

// Command texts, without terminator.
const (
	CmdWakeUp        = "DRAKJHSUYDGBNCJHGJKSHBDN"
	CmdConnect       = "connect"
	CmdConnectRetry  = "0xFF0xFFconnect"
	CmdSendMe        = "sendme"
	CmdReset         = "rest"
	CmdPageHome      = "page 1"
	CmdPageReady     = "page 7"
	CmdAnnounceReady = `t4.txt="UPDATED"`

	// ColorSuffix follows the whmi-wri parameters.
	ColorSuffix = "0x790x790x79"
)

// ConnectResponse is the text a display sends back to a connect probe.
const ConnectResponse = "comok"

// CompletionMarker is the leading sequence of the reply that ends a successful upload.
var CompletionMarker = []byte{0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x88, 0xFF, 0xFF, 0xFF}

// Terminated returns cmd followed by the frame terminator.
func Terminated(cmd string) Text {
	return Text(cmd + Terminator)
}

// UploadCommand builds the whmi-wri command announcing an image of size bytes
// transferred at uploadBaud.
func UploadCommand(size int, uploadBaud int) Text {
	return Text(fmt.Sprintf("whmi-wri %d,%d,res0%s%s", size, uploadBaud, ColorSuffix, Terminator))
}

// BaudCommand builds the command that sets the display's default baud.
func BaudCommand(baud int) Text {
	return Terminated(fmt.Sprintf("bauds=%d", baud))
}

// HandshakeFrames returns the three frames sent on every handshake attempt.
func HandshakeFrames() []Text {
	return []Text{
		Terminated(CmdWakeUp),
		Terminated(CmdConnect),
		Terminated(CmdConnectRetry),
	}
}
