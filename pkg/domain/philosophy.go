package domain

import "github.com/papercomputeco/dialogue/pkg/llm"

// Philosophy is the philosophical companion chat.
var Philosophy = Config{
	Name:           "philosophy",
	Welcome:        "Welcome, seeker of wisdom. I am your philosophical companion. What existential questions or philosophical inquiries shall we explore today?",
	PromptTemplate: "Question: {prompt}\n\nA philosophical response:",
	Params: llm.Params{
		MaxNewTokens:      100,
		Temperature:       0.7,
		TopP:              0.9,
		RepetitionPenalty: 1.2,
	},
	MinLength:   20,
	Placeholder: "As Socrates might say, wisdom begins in wonder. Perhaps we should wonder more about this question.",
	Fallbacks: []string{
		"The unexamined life is not worth living. What aspects of your existence have you reflected upon today?",
		"As Socrates would inquire, what is the nature of your question? What assumptions might we be making?",
		"Perhaps, as Kant might suggest, we should consider both the intentions and consequences of such actions.",
		"The Stoics would remind us that we cannot control external events, only our reactions to them.",
		"In the words of Simone de Beauvoir, 'One is not born, but rather becomes.' How have your experiences shaped who you are?",
		"Nietzsche might challenge us to question the very values upon which this question rests.",
		"The paradox of choice, as Kierkegaard might observe, is that with freedom comes both possibility and anxiety.",
		"To borrow from Aristotle's virtue ethics, perhaps the answer lies in the golden mean between two extremes.",
		"As Confucius taught, perhaps we should first seek harmony and balance within ourselves before looking outward.",
		"The Daoist perspective would suggest that we should align ourselves with the natural flow rather than force outcomes.",
		"Perhaps, as Heidegger might suggest, we should question our very mode of being-in-the-world as we approach this.",
		"In the spirit of Hannah Arendt, we might consider how our actions contribute to the public sphere and shared human experience.",
		"As Wittgenstein might remind us, the limits of our language mean the limits of our world. Perhaps we need new words for this conversation.",
		"Following Descartes' method of doubt, let us question everything we think we know about this subject and rebuild from certainty.",
	},
	LoadedNotice: Notice{
		Title:       "Philosophical model loaded",
		Description: "Ready for deep conversations",
	},
	LoadFailedNotice: Notice{
		Title:       "Failed to load philosophical model",
		Description: "Falling back to predefined responses",
	},
	GenerationFailedNotice: Notice{
		Title:       "Could not process with the AI model",
		Description: "Falling back to predefined responses",
	},
}
