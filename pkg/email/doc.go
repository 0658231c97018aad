// Package email sends notification emails.
//
// Sender has two implementations: PostmarkSender for real delivery through
// github.com/mrz1836/postmark, and DevSender which writes each message to a
// directory for local inspection. New picks one from Config.
//
// Message bodies are templ components rendered with templates.Render.
package email
