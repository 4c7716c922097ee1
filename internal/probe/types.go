package probe

import (
	"strconv"
	"strings"
)

// FormatInfo holds container-level metadata from ffprobe's format section.
// Duration and Size are zero when ffprobe did not report them; DurationOK
// distinguishes a missing duration from a legitimate zero.
type FormatInfo struct {
	Filename   string
	FormatName string
	Duration   float64
	DurationOK bool
	Size       int64
	BitRate    int64
}

// VideoStream holds the parsed properties of a single video stream.
type VideoStream struct {
	Index         int
	Codec         string
	PixFmt        string
	Width         int
	Height        int
	FrameRate     string // r_frame_rate, e.g. "25/1" or "30000/1001".
	AvgFrameRate  string
	IsAttachedPic bool
}

// AudioStream holds the parsed properties of a single audio stream.
type AudioStream struct {
	Index      int
	Codec      string
	Channels   int
	SampleRate int
}

// ProbeResult is the fully parsed output of a single ffprobe JSON call.
// PrimaryVideo is the first non-attached-pic video stream (nil if none).
type ProbeResult struct {
	Format       FormatInfo
	PrimaryVideo *VideoStream
	AudioStreams []AudioStream
}

// Profile returns the stream parameters that must match for stream-copy
// concatenation. Fields ffprobe did not report stay at their zero value.
func (p *ProbeResult) Profile() StreamProfile {
	var sp StreamProfile
	if v := p.PrimaryVideo; v != nil {
		sp.Width = v.Width
		sp.Height = v.Height
		sp.FrameRate = v.FrameRate
		sp.VideoCodec = v.Codec
	}
	if len(p.AudioStreams) > 0 {
		sp.AudioCodec = p.AudioStreams[0].Codec
	}
	return sp
}

// Field names used by [StreamProfile.Fields], in comparison order.
const (
	FieldWidth      = "width"
	FieldHeight     = "height"
	FieldFrameRate  = "frame_rate"
	FieldVideoCodec = "video_codec"
	FieldAudioCodec = "audio_codec"
)

// StreamProfile is the subset of stream metadata compared before files are
// concatenated. A zero value means ffprobe did not report the field.
type StreamProfile struct {
	Width      int
	Height     int
	FrameRate  string
	VideoCodec string
	AudioCodec string
}

// Field is one present profile parameter.
type Field struct {
	Name  string
	Value string
}

// Fields returns the present parameters in comparison order. Absent
// parameters are omitted rather than reported as empty values.
func (s StreamProfile) Fields() []Field {
	fields := make([]Field, 0, 5)
	if s.Width > 0 {
		fields = append(fields, Field{FieldWidth, strconv.Itoa(s.Width)})
	}
	if s.Height > 0 {
		fields = append(fields, Field{FieldHeight, strconv.Itoa(s.Height)})
	}
	if fr := strings.TrimSpace(s.FrameRate); fr != "" && fr != "0/0" {
		fields = append(fields, Field{FieldFrameRate, fr})
	}
	if s.VideoCodec != "" {
		fields = append(fields, Field{FieldVideoCodec, s.VideoCodec})
	}
	if s.AudioCodec != "" {
		fields = append(fields, Field{FieldAudioCodec, s.AudioCodec})
	}
	return fields
}

// Lookup returns the value of the named parameter and whether it is present.
func (s StreamProfile) Lookup(name string) (string, bool) {
	for _, f := range s.Fields() {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Missing returns the names from required that are absent.
func (s StreamProfile) Missing(required []string) []string {
	var missing []string
	for _, name := range required {
		if _, ok := s.Lookup(name); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// IsEmpty reports whether no parameter is present at all.
func (s StreamProfile) IsEmpty() bool {
	return len(s.Fields()) == 0
}

// Resolution returns "WxH", or "unknown" when either dimension is absent.
func (s StreamProfile) Resolution() string {
	if s.Width <= 0 || s.Height <= 0 {
		return "unknown"
	}
	return strconv.Itoa(s.Width) + "x" + strconv.Itoa(s.Height)
}
