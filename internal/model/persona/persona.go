package persona

// Kind separates personas that talk to the child from personas that only
// post-process answers.
type Kind string

const (
	KindTutor    Kind = "tutor"
	KindReviewer Kind = "reviewer"
)

const (
	// DefaultTutorID is bound to sessions created without an explicit persona.
	DefaultTutorID = "kids-tutor"
	// ReviewerID is the persona used by the reviewer stage.
	ReviewerID = "reviewer"
)

// Persona captures the fixed role a completion call is made under.
type Persona struct {
	ID          string  `json:"id"`
	Kind        Kind    `json:"kind"`
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Language    string  `json:"language"`
	Temperature float32 `json:"temperature"`
	OpeningLine string  `json:"openingLine,omitempty"`
}

// Seed provides the built-in tutor and reviewer personas.
func Seed() []Persona {
	return []Persona{
		{
			ID:          DefaultTutorID,
			Kind:        KindTutor,
			Name:        "やさしいチューター",
			Title:       "小学生向けプログラミング教室",
			Language:    "ja-JP",
			Temperature: 0.3,
			OpeningLine: "こんにちは！プログラミングのことなら、なんでも聞いてね。",
		},
		{
			ID:          "kids-tutor-en",
			Kind:        KindTutor,
			Name:        "Friendly Tutor",
			Title:       "Programming class for kids",
			Language:    "en-US",
			Temperature: 0.3,
			OpeningLine: "Hi there! Ask me anything about programming.",
		},
		{
			ID:          ReviewerID,
			Kind:        KindReviewer,
			Name:        "指導アシスタント",
			Title:       "回答レビュー",
			Language:    "ja-JP",
			Temperature: 0,
		},
	}
}
