package service

import (
	"fmt"
	"strings"

	"audiotour/internal/model"
)

// systemMessageForMode picks the narrator persona for the chat completion.
func systemMessageForMode(mode string) string {
	switch mode {
	case model.ModeSavage:
		return "You are a tour guide who shows the dark, raw side of places, unfiltered."
	case model.ModeUltraSavage:
		return "You are an extremely provocative tour guide with no limits on your narrative."
	default:
		return "You are an expert, friendly tour guide."
	}
}

// temperatureForMode: the edgier modes get a higher sampling temperature.
func temperatureForMode(mode string) float64 {
	if mode == model.ModeNormal || mode == "" {
		return 0.7
	}
	return 0.9
}

// buildTourPrompt assembles the generation prompt for the requested mode.
func buildTourPrompt(req model.TourRequest) string {
	interests := "Not specified"
	if len(req.Interests) > 0 {
		interests = strings.Join(req.Interests, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert tour guide creating an audio tour for %s.\n\n", req.Location)
	fmt.Fprintf(&b, "Target duration: %d minutes\n", req.DurationMinutes)
	fmt.Fprintf(&b, "Visitor interests: %s\n", interests)
	if req.VisitorInfo != "" {
		fmt.Fprintf(&b, "Additional visitor information: %s\n", req.VisitorInfo)
	}
	b.WriteString("\n")

	switch req.Mode {
	case model.ModeSavage:
		b.WriteString(`Write an audio script with:
1. A raw, grim introduction with a morbid edge.
2. Points of interest narrated with intense descriptions, without softening the unpleasant.
3. Dark or controversial stories that provoke discomfort and reflection.
4. A strong conclusion with lasting impact.

The tone should be personal but raw and direct, unafraid to unsettle.`)
	case model.ModeUltraSavage:
		b.WriteString(`Write an extreme audio script that:
1. Opens with a morbid, grotesque, provocative introduction.
2. Describes points of interest with absolute rawness, no filters.
3. Includes controversial, cruel, or taboo stories designed to provoke a reaction.
4. Ends with an unsettling or disturbing conclusion.

After each narrative block, add a short note on why that fragment could be sensitive or controversial for some listeners.

The tone should be defiant and transgressive, pushing boundaries.`)
	default:
		b.WriteString(`Write an audio script with:
1. A warm, welcoming introduction.
2. Points of interest narrated clearly and engagingly.
3. Interesting stories told in a positive, pleasant tone.
4. An inspiring, personal conclusion.

The tone should be friendly, conversational, and accessible to any visitor.`)
	}
	return b.String()
}
