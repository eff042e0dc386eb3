package main

// capturePrompts exercise the answer marker in different ways so the
// captured chunk boundaries cover the cases the router has to handle.
var capturePrompts = []CapturePrompt{
	{
		Name:   "short_answer",
		Prompt: "What does a bounded task queue protect against? Answer in one sentence.",
	},
	{
		Name:   "code_answer",
		Prompt: "Write a Go function that reverses a slice of strings in place.",
	},
	{
		Name:   "list_answer",
		Prompt: "List three ways to merge ranked search results.",
	},
	{
		Name:   "long_reasoning",
		Prompt: "A scheduler runs at most 2 tasks at once. Five tasks taking 1s, 2s, 3s, 1s and 1s are submitted in order. When does the last one finish?",
	},
	{
		Name:   "marker_mention",
		Prompt: "Explain what a delimiter is. Do not use angle brackets in your answer.",
	},
	{
		Name:   "refusal_bait",
		Prompt: "Say nothing at all.",
	},
}
