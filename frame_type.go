package bmff

// FrameType is the coding type of a video sample as signalled by the container.
type FrameType uint8

// Frame types as carried in FLV video tags.
const (
	KeyFrame             FrameType = 1
	InterFrame           FrameType = 2
	DisposableInterFrame FrameType = 3
	GeneratedKeyFrame    FrameType = 4
	CommandFrame         FrameType = 5
)

func (ft FrameType) String() string {
	switch ft {
	case KeyFrame:
		return "KeyFrame"
	case InterFrame:
		return "InterFrame"
	case DisposableInterFrame:
		return "DisposableInterFrame"
	case GeneratedKeyFrame:
		return "GeneratedKeyFrame"
	case CommandFrame:
		return "CommandFrame"
	}
	return "Unknown"
}

// IsKey reports whether samples of this type are sync samples.
func (ft FrameType) IsKey() bool {
	return ft == KeyFrame
}

// MediaType distinguishes audio and video samples.
type MediaType uint8

// Media types.
const (
	Video MediaType = iota
	Audio
)

func (mt MediaType) String() string {
	if mt == Audio {
		return "audio"
	}
	return "video"
}
