package report

import (
	"github.com/atotto/clipboard"
	"github.com/pkg/browser"
)

// Clipboard receives HTML fragments.
type Clipboard interface {
	WriteAll(text string) error
}

// Viewer opens a written report with the default application.
type Viewer interface {
	Open(path string) error
}

// SystemClipboard writes to the operating system clipboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return errClipboardUnsupported
	}
	return clipboard.WriteAll(text)
}

// SystemViewer opens files with the operating system's default handler.
type SystemViewer struct{}

func (SystemViewer) Open(path string) error {
	return browser.OpenFile(path)
}
