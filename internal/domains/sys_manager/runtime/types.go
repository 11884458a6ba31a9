package runtime

type CyclePhase string

const (
	AWAITING_UTTERANCE CyclePhase = "awaiting_utterance"
	GENERATING         CyclePhase = "generating"
	STREAMING_SPEECH   CyclePhase = "streaming_speech" // speech announced, audio may be playing
	DISPATCHING_BOARD  CyclePhase = "dispatching_board"
	INTERRUPTED        CyclePhase = "interrupted"
	COMPLETE           CyclePhase = "complete"
)

type CycleEvent string

const (
	GENERATE  CycleEvent = "generate"
	SPEAK     CycleEvent = "speak"
	DRAW      CycleEvent = "draw"
	INTERRUPT CycleEvent = "interrupt"
	FINISH    CycleEvent = "finish"
)
