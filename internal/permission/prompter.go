// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package permission

import (
	"context"
)

// StaticPrompter answers every dialog with the same answer.
type StaticPrompter struct {
	Answer Answer
}

// Prompt returns the configured answer unless the context is done.
func (p StaticPrompter) Prompt(ctx context.Context, _ []Scope) (Answer, error) {
	if err := ctx.Err(); err != nil {
		return AnswerDeny, err
	}
	return p.Answer, nil
}

// Dialog is a pending system dialog handed to the user interface.
type Dialog struct {
	Scopes []Scope
	reply  chan Answer
}

// Answer replies to the dialog. Only the first answer counts.
func (d Dialog) Answer(answer Answer) {
	select {
	case d.reply <- answer:
	default:
	}
}

// ChannelPrompter hands dialogs to a user interface reading from Dialogs and waits for the
// answer.
type ChannelPrompter struct {
	dialogs chan Dialog
}

// NewChannelPrompter returns a ChannelPrompter with an unbuffered dialog channel.
func NewChannelPrompter() *ChannelPrompter {
	return &ChannelPrompter{dialogs: make(chan Dialog)}
}

// Dialogs returns the channel pending dialogs are delivered on.
func (p *ChannelPrompter) Dialogs() <-chan Dialog {
	return p.dialogs
}

// Prompt delivers a dialog on Dialogs and blocks until it is answered or the context is done.
func (p *ChannelPrompter) Prompt(ctx context.Context, scopes []Scope) (Answer, error) {
	dialog := Dialog{Scopes: scopes, reply: make(chan Answer, 1)}
	select {
	case p.dialogs <- dialog:
	case <-ctx.Done():
		return AnswerDeny, ctx.Err()
	}
	select {
	case answer := <-dialog.reply:
		return answer, nil
	case <-ctx.Done():
		return AnswerDeny, ctx.Err()
	}
}
