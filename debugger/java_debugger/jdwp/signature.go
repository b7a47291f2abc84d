package jdwp

import "strings"

var primitiveNames = map[byte]string{
	'Z': "boolean",
	'B': "byte",
	'C': "char",
	'S': "short",
	'I': "int",
	'J': "long",
	'F': "float",
	'D': "double",
	'V': "void",
}

// TypeNameFromSignature 将JNI签名转换成Java的类型名，例如 "Lpkg/Main;" -> "pkg.Main"，"[I" -> "int[]"
func TypeNameFromSignature(sig string) string {
	dims := 0
	for dims < len(sig) && sig[dims] == '[' {
		dims++
	}
	rest := sig[dims:]
	var name string
	switch {
	case len(rest) == 1 && primitiveNames[rest[0]] != "":
		name = primitiveNames[rest[0]]
	case strings.HasPrefix(rest, "L") && strings.HasSuffix(rest, ";"):
		name = strings.ReplaceAll(rest[1:len(rest)-1], "/", ".")
	default:
		name = rest
	}
	return name + strings.Repeat("[]", dims)
}

// SignatureFromTypeName TypeNameFromSignature的逆过程，只处理类类型
func SignatureFromTypeName(name string) string {
	return "L" + strings.ReplaceAll(name, ".", "/") + ";"
}
