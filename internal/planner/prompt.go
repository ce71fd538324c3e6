package planner

import (
	"fmt"
	"strconv"
	"strings"
)

// EndOfPlan is the stop sequence the planner emits after the fuse step.
const EndOfPlan = "<END_OF_PLAN>"

// fuseDescription is appended to the tool list as the last action type.
const fuseDescription = `fuse():
 - Collects and combines results from prior actions.
 - An LLM agent is called upon invoking fuse() to either finalize the user query or wait until the plans are executed.
 - fuse should always be the last action in the plan, and will be called in two scenarios:
   (a) if the answer can be determined by gathering the outputs from tasks to generate the final response.
   (b) if the answer cannot be determined in the planning phase before you execute the plans.`

// guidelines apply to every plan.
const guidelines = `Guidelines:
 - Each action described above contains input/output types and description.
    - You must strictly adhere to the input and output types for each action.
    - The action descriptions contain the guidelines. You MUST strictly follow those guidelines when you use the actions.
 - Each action in the plan should strictly be one of the above types. Follow the Python conventions for each action.
 - Each action MUST have a unique ID, which is strictly increasing.
 - Inputs for actions can either be constants or outputs from preceding actions. In the latter case, use the format $id to denote the ID of the previous action whose output will be the input.
 - Always call fuse as the last action in the plan. Say '` + EndOfPlan + `' after you call fuse.
 - Ensure the plan maximizes parallelizability.
 - Only use the provided action types. If a query cannot be addressed using these, invoke the fuse action for the next steps.
 - Never introduce new actions other than the ones provided.`

// replanGuidelines are added when a previous plan is part of the input.
const replanGuidelines = ` - You are given "Previous Plan" which is the plan that the previous agent created along with the execution results (given as Observation) of each plan and a general thought (given as Thought) about the executed results. You MUST use these information to create the next plan under "Current Plan".
 - When starting the Current Plan, you should start with "Thought" that outlines the strategy for the next plan.
 - In the Current Plan, you should NEVER repeat the actions that are already executed in the Previous Plan.
 - Number the actions of the Current Plan starting from 1.`

// DefaultExamplePrompt shows the plan format the parser accepts.
const DefaultExamplePrompt = `Question: What is the population of France divided by its area?
Thought: I can look up both figures in parallel and then divide them.
1. search("population of France")
2. search("area of France in square kilometers")
3. fuse()
` + EndOfPlan + `
###

Question: Which region had the highest total sales in 2024?
1. sales_analyst("Which region had the highest total sales in 2024?")
2. fuse()
` + EndOfPlan + `
###
`

// SystemPrompt renders the planner instructions. tools is the numbered list
// produced by the registry; the fuse action is numbered after it.
func SystemPrompt(tools, examples string, replan bool) string {
	n := countTools(tools) + 1
	var b strings.Builder
	fmt.Fprintf(&b, "Given a user query, create a plan to solve it with the utmost parallelizability. Each plan should comprise an action from the following %d types:\n", n)
	b.WriteString(tools)
	fmt.Fprintf(&b, "%d. %s\n\n", n, fuseDescription)
	b.WriteString(guidelines)
	b.WriteString("\n")
	if replan {
		b.WriteString(replanGuidelines)
		b.WriteString("\n")
	}
	b.WriteString("\nHere are some examples:\n\n")
	b.WriteString(examples)
	return b.String()
}

// countTools counts the top-level "N. " entries of a tool list.
func countTools(tools string) int {
	n := 0
	for _, line := range strings.Split(tools, "\n") {
		i := strings.Index(line, ". ")
		if i <= 0 {
			continue
		}
		if _, err := strconv.Atoi(line[:i]); err == nil {
			n++
		}
	}
	return n
}

// HumanPrompt renders the user turn. On a replan the formatted previous
// plans follow the question.
func HumanPrompt(input, context string, replan bool) string {
	if replan {
		return fmt.Sprintf("Question: %s\n%s\n", input, context)
	}
	return fmt.Sprintf("Question: %s", input)
}
