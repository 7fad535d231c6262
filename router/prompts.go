package router

import (
	"github.com/effective-security/reagent/pkg/prompts"
)

// ApologyMessage replaces a response that still wants tool calls when the
// step budget is exhausted.
const ApologyMessage = "Sorry, I could not find an answer in the specified number of steps."

// toolMatchingPrompt asks a classification model which tools are relevant
// to the user's question. The answer is constrained to a typed list of
// names and validated against the live catalog afterwards.
var toolMatchingPrompt = prompts.NewPromptTemplate(`You are a tool selection assistant. Given a user question and the list of available tools, select the tools that are relevant to answering the question.

User question: {user_text}

Available tools:
{tools_description}

Return the names of the relevant tools, exactly as they appear in the list above. Return an empty list if none of the tools are relevant. Never invent tool names.`,
	[]string{"user_text", "tools_description"})

// refusalPrompt asks the model to phrase a decline that lists what the
// agent can actually do.
var refusalPrompt = prompts.NewPromptTemplate(`You are an assistant that answers questions only through its available tools. None of your tools can help with the user's question. Politely decline to answer and briefly describe what you can help with instead, based on your capabilities below.

User question: {user_question}

Your capabilities:
{capability_info}

Keep the response short and courteous. Do not attempt to answer the question.`,
	[]string{"user_question", "capability_info"})
