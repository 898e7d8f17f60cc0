/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package handlers

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(14)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(0, 1)
)

type field struct {
	label string
	value string
}

// printSummary writes a titled block of label/value lines.
func printSummary(w io.Writer, title string, fields ...field) {
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		lines = append(lines, labelStyle.Render(f.label)+f.value)
	}
	body := strings.Join(lines, "\n")
	fmt.Fprintln(w, titleStyle.Render(title))
	if body != "" {
		fmt.Fprintln(w, boxStyle.Render(body))
	}
}
