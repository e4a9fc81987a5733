// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/logger"
	"github.com/wneessen/mapscreen/internal/permission"
)

var ErrNoDialog = errors.New("no permission dialog is open")

// Input commands besides "lat,lon" taps.
const (
	CmdAllow  = "allow"
	CmdDeny   = "deny"
	CmdNever  = "never"
	CmdRetry  = "retry"
	CmdToggle = "alt"
)

var dialogAnswers = map[string]permission.Answer{
	CmdAllow: permission.AnswerAllow,
	CmdDeny:  permission.AnswerDeny,
	CmdNever: permission.AnswerDenyDontAskAgain,
}

// processInput reads one command per line until the input is exhausted or the context is
// cancelled.
func (s *Service) processInput(ctx context.Context, input io.Reader) {
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if err := s.handleCommand(line); err != nil {
			s.logger.Warn("failed to process input", logger.Err(err), slog.String("input", line))
		}
	}
	if err := scanner.Err(); err != nil {
		s.logger.Error("failed to read input", logger.Err(err))
	}
}

func (s *Service) handleCommand(line string) error {
	cmd := strings.ToLower(strings.TrimSpace(line))
	switch cmd {
	case "":
		return nil
	case CmdRetry:
		return s.screen.Retry()
	case CmdToggle:
		s.toggleAltText()
		return nil
	case CmdAllow, CmdDeny, CmdNever:
		return s.answerDialog(dialogAnswers[cmd])
	}

	coord, err := geo.Parse(cmd)
	if err != nil {
		return fmt.Errorf("failed to parse tap: %w", err)
	}
	return s.screen.Tap(coord)
}

// processDialogs keeps the most recent permission dialog open for answerDialog.
func (s *Service) processDialogs(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case dialog := <-s.dialogs.Dialogs():
			s.dialogLock.Lock()
			s.dialog = &dialog
			s.dialogLock.Unlock()
			s.logger.Info("location permission requested",
				slog.String("answers", strings.Join([]string{CmdAllow, CmdDeny, CmdNever}, ", ")))
		}
	}
}

func (s *Service) answerDialog(answer permission.Answer) error {
	s.dialogLock.Lock()
	defer s.dialogLock.Unlock()
	if s.dialog == nil {
		return ErrNoDialog
	}
	s.dialog.Answer(answer)
	s.dialog = nil
	s.logger.Debug("answered permission dialog", slog.String("answer", answer.String()))
	return nil
}

func (s *Service) toggleAltText() {
	s.displayAltLock.Lock()
	s.displayAltText = !s.displayAltText
	s.displayAltLock.Unlock()
	s.outputJob.Trigger()
}
