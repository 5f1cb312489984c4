package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// GetSimpleText prints a prompt to w and reads a single line of input from reader.
// The trailing newline is trimmed. If EOF occurs after some input was read,
// the partial line is returned.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetPassword reads a password from the terminal without echo.
// The caller should wipe the returned slice when done.
func GetPassword(w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, "Enter password: "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// GetConfirmation asks a yes/no question; anything but y/yes means no.
func GetConfirmation(reader *bufio.Reader, prompt string, w io.Writer) (bool, error) {
	answer, err := GetSimpleText(reader, prompt+" (y/N)", w)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes"), nil
}

// GetAnswerInput prompts for a value of the kind q expects. Text questions
// take several lines; the other kinds take one, with the option list shown
// for choice questions.
func GetAnswerInput(reader *bufio.Reader, q models.Question, w io.Writer) (string, error) {
	switch q.Type {
	case models.QuestionText:
		if _, err := fmt.Fprint(w, q.QuestionText+"\n(press Enter on an empty line to finish)\n"); err != nil {
			return "", err
		}
		return strings.TrimSpace(strings.Join(readUntilBlank(reader), "\n")), nil
	case models.QuestionNumber:
		return GetSimpleText(reader, q.QuestionText+" (number, - to clear)", w)
	case models.QuestionSingleChoice:
		return GetSimpleText(reader, fmt.Sprintf("%s [%s]", q.QuestionText, strings.Join(q.Options, " | ")), w)
	case models.QuestionMultipleChoice:
		return GetSimpleText(reader, fmt.Sprintf("%s [%s] (comma separated)", q.QuestionText, strings.Join(q.Options, " | ")), w)
	default:
		return "", fmt.Errorf("%w: question %s takes a file, use attach", common.ErrValidation, q.ID)
	}
}

// GetMetadata reads "name=value" lines until an empty one. The raw lines are
// returned unchanged; models.MetadataFromPairs parses them.
func GetMetadata(reader *bufio.Reader, w io.Writer) ([]string, error) {
	if _, err := fmt.Fprintln(w, "Enter metadata in the format name=value (empty line to finish)"); err != nil {
		return nil, err
	}
	return readUntilBlank(reader), nil
}

// readUntilBlank collects lines up to the first empty one or EOF. Only the
// line terminator is stripped.
func readUntilBlank(reader *bufio.Reader) []string {
	lines := make([]string, 0)
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return lines
		}
		lines = append(lines, line)
		if err != nil {
			return lines
		}
	}
}
