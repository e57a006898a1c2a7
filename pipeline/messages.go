package pipeline

// Messages 发送给用户的固定文案
type Messages struct {
	EmptyPrompt string `yaml:"empty_prompt" json:"empty_prompt" env:"EMPTY_PROMPT"`
	Working     string `yaml:"working" json:"working" env:"WORKING"`
	Done        string `yaml:"done" json:"done" env:"DONE"`
	Failure     string `yaml:"failure" json:"failure" env:"FAILURE"`
}

// DefaultMessages 默认文案
func DefaultMessages() Messages {
	return Messages{
		EmptyPrompt: "⚠️ A prompt is required.",
		Working:     "🎨 Calling the ZIGen service, please wait...",
		Done:        "✅ Image generation finished.",
		Failure:     "❌ Generation failed. Check the service URL, parameters or logs.",
	}
}

// withDefaults 空字段回落到默认文案
func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	if m.EmptyPrompt == "" {
		m.EmptyPrompt = d.EmptyPrompt
	}
	if m.Working == "" {
		m.Working = d.Working
	}
	if m.Done == "" {
		m.Done = d.Done
	}
	if m.Failure == "" {
		m.Failure = d.Failure
	}
	return m
}
