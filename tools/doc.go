// Package tools provides the tool abstraction the agent exposes to LLMs.
package tools
