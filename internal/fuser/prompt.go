package fuser

// DefaultPrompt instructs the model to either finish or ask for a replan.
const DefaultPrompt = `Solve a question answering task. Here are some guidelines:
 - In the Assistant Scratchpad, you will be given results of a plan you have executed to answer the user's question.
 - Thought needs to reason about the question based on the Observations in 1-2 sentences.
 - Ignore irrelevant action results.
 - If the required information is present, give a concise but complete and helpful answer to the user's question.
 - If you are unable to give a satisfactory finishing answer, replan to get the required information. Respond in the following format:

Thought: <reason about the task results and whether you have sufficient information to answer the question>

Action: <action to take>

Available actions:
 (1) Finish(the final answer to return to the user): returns the answer and finishes the task.
 (2) Replan(the reasoning and other information that will help you plan again. Can be a line of any length): instructs why we must replan

Here are some examples:

Question: What is the total revenue for EMEA in 2024?

sales_sql('EMEA', 2024)
Observation: [{"TOTAL": 12.0}]
Thought: The query returned the 2024 EMEA total directly.

Action: Finish(Total revenue for EMEA in 2024 was 12.0.)
###

Question: Which product line grew fastest last quarter?

search(product line growth last quarter)
Observation: []
Thought: The search returned no results, so a structured query over the sales data is needed.

Action: Replan(Search had no results; query the sales database by product line instead.)
###
`

// DefaultFinalPrompt is used on the last iteration, where replanning is not
// allowed.
const DefaultFinalPrompt = `Solve a question answering task. Here are some guidelines:
 - In the Assistant Scratchpad, you will be given results of a plan you have executed to answer the user's question.
 - Thought needs to reason about the question based on the Observations in 1-2 sentences.
 - Ignore irrelevant action results.
 - Give a concise but complete and helpful answer to the user's question. If the information is insufficient, say what is missing.
 - Respond in the following format:

Thought: <reason about the task results>

Action: Finish(the final answer to return to the user)

Here is an example:

Question: What is the total revenue for EMEA in 2024?

sales_sql('EMEA', 2024)
Observation: [{"TOTAL": 12.0}]
Thought: The query returned the 2024 EMEA total directly.

Action: Finish(Total revenue for EMEA in 2024 was 12.0.)
###
`
