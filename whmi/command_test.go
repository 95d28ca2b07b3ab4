package whmi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Text(t *testing.T) {
	tests := []struct {
		name string
		text Text
		want []byte
	}{
		{
			name: "literal then escapes",
			text: "A0x410xFF0xFF0xFF",
			want: []byte{0x41, 0x41, 0xFF, 0xFF, 0xFF},
		},
		{
			name: "plain text",
			text: "connect",
			want: []byte("connect"),
		},
		{
			name: "empty",
			text: "",
			want: []byte{},
		},
		{
			name: "lower case hex",
			text: "0x0a0xfe",
			want: []byte{0x0A, 0xFE},
		},
		{
			name: "digit zero before escape",
			text: "bauds=1152000xFF0xFF0xFF",
			want: append([]byte("bauds=115200"), 0xFF, 0xFF, 0xFF),
		},
		{
			name: "page with trailing digit",
			text: "page 10xFF0xFF0xFF",
			want: append([]byte("page 1"), 0xFF, 0xFF, 0xFF),
		},
		{
			name: "escape prefix",
			text: "0xFF0xFFconnect0xFF0xFF0xFF",
			want: append(append([]byte{0xFF, 0xFF}, "connect"...), 0xFF, 0xFF, 0xFF),
		},
		{
			name: "zero without x",
			text: "res0,0",
			want: []byte("res0,0"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode_Raw(t *testing.T) {
	chunk := Raw{0x30, 0x78, 0x46, 0x46, 0x00} // "0xFF" bytes stay literal
	got, err := Encode(chunk)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x30, 0x78, 0x46, 0x46, 0x00}, got)
}

func TestEncode_Malformed(t *testing.T) {
	tests := []struct {
		text   Text
		offset int
	}{
		{"connect0x", 7},
		{"connect0xF", 7},
		{"0xZZ", 0},
		{"ab0xF", 2},
		{"0x4G", 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.text), func(t *testing.T) {
			_, err := Encode(tt.text)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedEscape)

			var escErr *MalformedEscapeError
			require.ErrorAs(t, err, &escErr)
			assert.Equal(t, tt.offset, escErr.Offset)
			assert.False(t, IsRecoverable(err))
		})
	}
}

func TestEncode_NonASCII(t *testing.T) {
	_, err := Encode(Text("t4.txt=\"オK\""))
	assert.ErrorIs(t, err, ErrNonASCII)
}

func TestMustEncode(t *testing.T) {
	assert.Equal(t, []byte("rest\xff\xff\xff"), MustEncode(Terminated(CmdReset)))
	assert.Panics(t, func() { MustEncode(Text("0x")) })
}

func TestUploadCommand(t *testing.T) {
	got := MustEncode(UploadCommand(123456, BaudUpload921600))

	want := append([]byte("whmi-wri 123456,921600,res0"), 0x79, 0x79, 0x79, 0xFF, 0xFF, 0xFF)
	assert.Equal(t, want, got)
}

func TestBaudCommand(t *testing.T) {
	assert.Equal(t, append([]byte("bauds=115200"), 0xFF, 0xFF, 0xFF), MustEncode(BaudCommand(BaudDefault)))
}

func TestHandshakeFrames(t *testing.T) {
	frames := HandshakeFrames()
	require.Len(t, frames, 3)

	assert.Equal(t, "DRAKJHSUYDGBNCJHGJKSHBDN\xff\xff\xff", string(MustEncode(frames[0])))
	assert.Equal(t, "connect\xff\xff\xff", string(MustEncode(frames[1])))
	assert.Equal(t, "\xff\xffconnect\xff\xff\xff", string(MustEncode(frames[2])))
}

func TestAnnounceCommand(t *testing.T) {
	assert.Equal(t, "t4.txt=\"UPDATED\"\xff\xff\xff", string(MustEncode(Terminated(CmdAnnounceReady))))
}
