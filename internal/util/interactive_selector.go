package util

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"mpdcore/internal/entity"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrSelectionCancelled 用户退出了选择界面
var ErrSelectionCancelled = errors.New("selection cancelled")

// RepresentationChoice is one selectable representation with where it lives
type RepresentationChoice struct {
	PeriodID       string
	Adaptation     *entity.Adaptation
	Representation *entity.Representation
}

// String 选项的显示文本
func (c RepresentationChoice) String() string {
	text := c.Representation.ToShortString(c.Adaptation.Type)
	if c.Adaptation.Language != "" {
		text += " | " + c.Adaptation.Language
	}
	return text
}

// SelectionGroup 选择组
type SelectionGroup struct {
	Name     string
	Choices  []RepresentationChoice
	StartIdx int
}

// InteractiveSelector 交互式选择器
type InteractiveSelector struct {
	title           string
	groups          []SelectionGroup
	allChoices      []RepresentationChoice
	selectedChoices map[int]bool
	in              io.Reader
	out             io.Writer
}

// NewInteractiveSelector 创建交互式选择器
func NewInteractiveSelector() *InteractiveSelector {
	return &InteractiveSelector{
		title:           "请选择流:",
		selectedChoices: make(map[int]bool),
		in:              os.Stdin,
		out:             os.Stdout,
	}
}

// SetIO replaces stdin and stdout, the bubbletea UI is only used on a terminal
func (s *InteractiveSelector) SetIO(in io.Reader, out io.Writer) *InteractiveSelector {
	s.in = in
	s.out = out
	return s
}

// SetTitle 设置标题
func (s *InteractiveSelector) SetTitle(title string) *InteractiveSelector {
	s.title = title
	return s
}

// AddChoiceGroup 添加选择组
func (s *InteractiveSelector) AddChoiceGroup(name string, choices []RepresentationChoice) *InteractiveSelector {
	s.groups = append(s.groups, SelectionGroup{Name: name, Choices: choices, StartIdx: len(s.allChoices)})
	s.allChoices = append(s.allChoices, choices...)
	return s
}

// Select 预选择项目
func (s *InteractiveSelector) Select(rep *entity.Representation) *InteractiveSelector {
	for i, c := range s.allChoices {
		if c.Representation == rep {
			s.selectedChoices[i] = true
			break
		}
	}
	return s
}

// ShowPrompt 显示选择界面
func (s *InteractiveSelector) ShowPrompt() ([]RepresentationChoice, error) {
	if !s.isInteractiveTerminal() {
		Logger.Debug("终端不支持交互模式，使用简单模式")
		return s.showSimplePrompt()
	}
	return s.showBubbleTeaPrompt()
}

func (s *InteractiveSelector) isInteractiveTerminal() bool {
	f, ok := s.in.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// choiceItem 列表项, a group header or a representation
type choiceItem struct {
	index   int
	choice  RepresentationChoice
	group   string
	isGroup bool
}

func (i choiceItem) FilterValue() string {
	if i.isGroup {
		return i.group
	}
	return i.choice.String()
}

type selectorModel struct {
	list     list.Model
	items    []choiceItem
	selected map[int]bool
	groups   []SelectionGroup
	quitting bool
	finished bool
}

func (m selectorModel) Init() tea.Cmd {
	return nil
}

func (m selectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case " ":
			if item, ok := m.list.SelectedItem().(choiceItem); ok && !item.isGroup {
				if m.selected[item.index] {
					delete(m.selected, item.index)
				} else {
					m.selected[item.index] = true
				}
				return m, nil
			}
		case "a":
			if g := m.currentGroup(); g != nil {
				all := m.groupFullySelected(g)
				for i := g.StartIdx; i < g.StartIdx+len(g.Choices); i++ {
					if all {
						delete(m.selected, i)
					} else {
						m.selected[i] = true
					}
				}
			}
			return m, nil
		case "n":
			if g := m.currentGroup(); g != nil {
				for i := g.StartIdx; i < g.StartIdx+len(g.Choices); i++ {
					delete(m.selected, i)
				}
			}
			return m, nil
		case "enter":
			m.finished = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m selectorModel) View() string {
	if m.quitting || m.finished {
		return ""
	}
	total := 0
	for _, item := range m.items {
		if !item.isGroup {
			total++
		}
	}
	help := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).
		Render("↑/↓ 导航，空格 选择/取消，a 选择整组，n 清除整组，回车 确认，q 退出")
	count := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).
		Render(fmt.Sprintf("已选择: %d/%d 项", len(m.selected), total))
	return help + "\n" + count + "\n" + m.list.View()
}

// currentGroup 当前光标所在的分组
func (m selectorModel) currentGroup() *SelectionGroup {
	cursor := m.list.Index()
	if cursor < 0 || cursor >= len(m.items) {
		return nil
	}
	// walk back to the header above the cursor
	for i := cursor; i >= 0; i-- {
		if !m.items[i].isGroup {
			continue
		}
		for g := range m.groups {
			if m.groups[g].Name == m.items[i].group {
				return &m.groups[g]
			}
		}
	}
	return nil
}

func (m selectorModel) groupFullySelected(g *SelectionGroup) bool {
	for i := g.StartIdx; i < g.StartIdx+len(g.Choices); i++ {
		if !m.selected[i] {
			return false
		}
	}
	return true
}

func (m selectorModel) result() []RepresentationChoice {
	res := make([]RepresentationChoice, 0, len(m.selected))
	for _, item := range m.items {
		if !item.isGroup && m.selected[item.index] {
			res = append(res, item.choice)
		}
	}
	return res
}

// choiceDelegate 列表项渲染器
type choiceDelegate struct {
	selected map[int]bool
}

func (d choiceDelegate) Height() int                             { return 1 }
func (d choiceDelegate) Spacing() int                            { return 0 }
func (d choiceDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d choiceDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	item, ok := listItem.(choiceItem)
	if !ok {
		return
	}
	isCursor := index == m.Index()

	if item.isGroup {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
		if isCursor {
			style = style.Bold(true)
		}
		fmt.Fprint(w, style.Render("=== "+item.group+" ==="))
		return
	}

	checkbox := "○"
	if d.selected[item.index] {
		checkbox = "●"
	}
	text := fmt.Sprintf("[%d] %s %s", item.index, checkbox, item.choice)
	switch {
	case isCursor && d.selected[item.index]:
		text = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true).Render("▶ " + text)
	case isCursor:
		text = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true).Render("▶ " + text)
	case d.selected[item.index]:
		text = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Render("  " + text)
	default:
		text = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("  " + text)
	}
	fmt.Fprint(w, text)
}

func (s *InteractiveSelector) showBubbleTeaPrompt() ([]RepresentationChoice, error) {
	items := make([]list.Item, 0, len(s.allChoices)+len(s.groups))
	choiceItems := make([]choiceItem, 0, cap(items))
	for _, g := range s.groups {
		header := choiceItem{group: g.Name, isGroup: true}
		items = append(items, header)
		choiceItems = append(choiceItems, header)
		for i, c := range g.Choices {
			item := choiceItem{index: g.StartIdx + i, choice: c}
			items = append(items, item)
			choiceItems = append(choiceItems, item)
		}
	}

	selected := make(map[int]bool, len(s.selectedChoices))
	for idx, ok := range s.selectedChoices {
		if ok {
			selected[idx] = true
		}
	}

	// the delegate shares the selection map with the model
	l := list.New(items, choiceDelegate{selected: selected}, 100, 20)
	l.Title = s.title
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	m := selectorModel{list: l, items: choiceItems, selected: selected, groups: s.groups}
	final, err := tea.NewProgram(m, tea.WithInput(s.in), tea.WithOutput(s.out)).Run()
	if err != nil {
		Logger.Warn("交互式选择失败: %s，回退到简单模式", err.Error())
		return s.showSimplePrompt()
	}
	fm, ok := final.(selectorModel)
	if !ok {
		return s.showSimplePrompt()
	}
	if fm.quitting {
		return nil, ErrSelectionCancelled
	}
	return fm.result(), nil
}

// showSimplePrompt 简单模式: prints the choices and reads indexes from a line
func (s *InteractiveSelector) showSimplePrompt() ([]RepresentationChoice, error) {
	title := lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	header := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	hint := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	fmt.Fprintln(s.out, title.Render(s.title))
	for _, g := range s.groups {
		fmt.Fprintln(s.out, header.Render("=== "+g.Name+" ==="))
		for i, c := range g.Choices {
			mark := " "
			if s.selectedChoices[g.StartIdx+i] {
				mark = "✓"
			}
			fmt.Fprintf(s.out, "[%d] %s %s\n", g.StartIdx+i, mark, c)
		}
	}
	fmt.Fprintln(s.out, hint.Render("输入选择 (逗号分隔，例如: 0,1,3)，'all' 全选，回车 保持默认"))
	fmt.Fprint(s.out, "选择: ")

	input, err := bufio.NewReader(s.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	return s.processInput(strings.TrimSpace(input)), nil
}

// processInput 处理简单模式的输入, an empty line keeps the preselection
func (s *InteractiveSelector) processInput(input string) []RepresentationChoice {
	switch input {
	case "":
	case "all":
		for i := range s.allChoices {
			s.selectedChoices[i] = true
		}
	case "none":
		s.selectedChoices = make(map[int]bool)
	default:
		s.selectedChoices = make(map[int]bool)
		for _, part := range strings.Split(input, ",") {
			if index, err := strconv.Atoi(strings.TrimSpace(part)); err == nil && index >= 0 && index < len(s.allChoices) {
				s.selectedChoices[index] = true
			}
		}
	}

	res := make([]RepresentationChoice, 0, len(s.selectedChoices))
	for i, c := range s.allChoices {
		if s.selectedChoices[i] {
			res = append(res, c)
		}
	}
	return res
}

// bestRepresentation 最高码率
func bestRepresentation(choices []RepresentationChoice) *entity.Representation {
	var best *entity.Representation
	for _, c := range choices {
		if best == nil || c.Representation.Bitrate > best.Bitrate {
			best = c.Representation
		}
	}
	return best
}

// SelectRepresentations lets the user pick representations of a manifest,
// one group per period and track type. The highest bitrate video and audio
// and every text representation are preselected.
func SelectRepresentations(m *entity.Manifest, in io.Reader, out io.Writer) ([]RepresentationChoice, error) {
	selector := NewInteractiveSelector().SetIO(in, out).SetTitle("请选择流:")

	for _, p := range m.Periods {
		for _, t := range entity.SupportedTrackTypes {
			choices := make([]RepresentationChoice, 0)
			for _, a := range p.Adaptations[t] {
				for _, r := range a.Representations {
					choices = append(choices, RepresentationChoice{PeriodID: p.ID, Adaptation: a, Representation: r})
				}
			}
			if len(choices) == 0 {
				continue
			}
			selector.AddChoiceGroup(fmt.Sprintf("%s %s", p.ID, t), choices)
			if t == entity.TrackTypeText {
				for _, c := range choices {
					selector.Select(c.Representation)
				}
			} else if best := bestRepresentation(choices); best != nil {
				selector.Select(best)
			}
		}
	}

	if len(selector.allChoices) == 0 {
		return nil, nil
	}
	return selector.ShowPrompt()
}
