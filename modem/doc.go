// Package modem holds the Hayes AT command vocabulary used by the terminal
// and the classification of the result codes the modem answers with.
package modem
