package utils

import (
	"context"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

// ClassInfo 源码中顶层类的定义信息
type ClassInfo struct {
	Name     string `json:"name"`
	Public   bool   `json:"public"`
	HasMain  bool   `json:"hasMain"`
	Line     int    `json:"line"`
	Abstract bool   `json:"abstract"`
}

// SourceInfo java源码的分析结果
type SourceInfo struct {
	Package string      `json:"package"`
	Classes []ClassInfo `json:"classes"`
	// StatementLines 方法体内语句开始的行，从1开始，升序
	StatementLines []int `json:"statementLines"`
}

// EntryClass 入口类，优先选择声明了main方法的public类
func (s *SourceInfo) EntryClass() (ClassInfo, bool) {
	var fallback *ClassInfo
	for i := range s.Classes {
		class := &s.Classes[i]
		if !class.HasMain {
			continue
		}
		if class.Public {
			return *class, true
		}
		if fallback == nil {
			fallback = class
		}
	}
	if fallback == nil {
		return ClassInfo{}, false
	}
	return *fallback, true
}

// PublicClass 顶层的public类，java要求源文件以它命名
func (s *SourceInfo) PublicClass() (ClassInfo, bool) {
	for _, class := range s.Classes {
		if class.Public {
			return class, true
		}
	}
	return ClassInfo{}, false
}

// NearestStatementLine 找到距离line最近的语句行，没有语句时返回0
func (s *SourceInfo) NearestStatementLine(line int) int {
	nearest := 0
	for _, l := range s.StatementLines {
		if nearest == 0 || abs(l-line) < abs(nearest-line) {
			nearest = l
		}
	}
	return nearest
}

func AnalyzeJavaSource(content []byte) (*SourceInfo, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(java.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	rootNode := tree.RootNode()
	info := &SourceInfo{}
	for i := 0; i < int(rootNode.NamedChildCount()); i++ {
		node := rootNode.NamedChild(i)
		switch node.Type() {
		case "package_declaration":
			info.Package = packageName(node, content)
		case "class_declaration":
			info.Classes = append(info.Classes, analyzeClass(node, content))
		}
	}
	info.StatementLines = statementLines(rootNode)
	return info, nil
}

func packageName(node *sitter.Node, content []byte) string {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "scoped_identifier" || child.Type() == "identifier" {
			return getNodeText(child, content)
		}
	}
	return ""
}

func analyzeClass(node *sitter.Node, content []byte) ClassInfo {
	class := ClassInfo{
		Line: int(node.StartPoint().Row + 1),
	}
	if name := node.ChildByFieldName("name"); name != nil {
		class.Name = getNodeText(name, content)
	}
	modifiers := modifiersOf(node, content)
	class.Public = modifiers["public"]
	class.Abstract = modifiers["abstract"]

	body := node.ChildByFieldName("body")
	if body == nil {
		return class
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		if member.Type() != "method_declaration" {
			continue
		}
		name := member.ChildByFieldName("name")
		if name == nil || getNodeText(name, content) != "main" {
			continue
		}
		mods := modifiersOf(member, content)
		if mods["public"] && mods["static"] {
			class.HasMain = true
		}
	}
	return class
}

// modifiersOf 节点的修饰符集合，注解会被忽略
func modifiersOf(node *sitter.Node, content []byte) map[string]bool {
	modifiers := map[string]bool{}
	mods := findChildByType(node, "modifiers")
	if mods == nil {
		return modifiers
	}
	for _, field := range strings.Fields(getNodeText(mods, content)) {
		if strings.HasPrefix(field, "@") {
			continue
		}
		modifiers[field] = true
	}
	return modifiers
}

// statementLines 遍历语法树，收集方法体内语句所在的行
func statementLines(rootNode *sitter.Node) []int {
	lines := map[int]struct{}{}
	// 使用栈来手动管理节点遍历
	stack := []*sitter.Node{rootNode}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if isStatement(node) {
			lines[int(node.StartPoint().Row+1)] = struct{}{}
		}
		for i := int(node.NamedChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, node.NamedChild(i))
		}
	}
	answer := make([]int, 0, len(lines))
	for line := range lines {
		answer = append(answer, line)
	}
	sort.Ints(answer)
	return answer
}

func isStatement(node *sitter.Node) bool {
	switch node.Type() {
	case "expression_statement", "local_variable_declaration", "return_statement",
		"if_statement", "for_statement", "enhanced_for_statement", "while_statement",
		"do_statement", "throw_statement", "break_statement", "continue_statement",
		"try_statement", "switch_expression", "yield_statement":
		return true
	}
	return false
}

// findChildByType 在节点的子节点中查找特定类型的节点
func findChildByType(node *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == nodeType {
			return child
		}
	}
	return nil
}

// getNodeText 获取节点对应的源代码文本
func getNodeText(node *sitter.Node, content []byte) string {
	start := node.StartByte()
	end := node.EndByte()
	return string(content[start:end])
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
