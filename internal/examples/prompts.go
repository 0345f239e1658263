package examples

const rerankPrompt = `You are choosing representative customer conversations for an executive support report.

Category: %s
Sentiment we want to illustrate: %s

Below are %d candidate messages, numbered from 1. Pick the %d that best illustrate the category and sentiment. Prefer specific, concrete messages that a reader understands without context. Avoid near-duplicates.

%s
Reply with only a JSON array of the chosen numbers, best first, for example [3, 1, 7].`

const defaultSentimentDescription = "any (most informative messages)"
