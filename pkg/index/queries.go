// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import "github.com/kraklabs/code-impact-analyzer/pkg/lang"

// Method returns the MethodInfo for a qualified name, if indexed.
func (c *CodeIndex) Method(qualifiedName string) (lang.MethodInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.methods[qualifiedName]
	return m, ok
}

// MethodCount returns the number of indexed methods.
func (c *CodeIndex) MethodCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.methods)
}

// FindCallers returns the forward_calls-derived reverse lookup: every
// method calling qualifiedName.
func (c *CodeIndex) FindCallers(qualifiedName string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSlice(c.reverseCalls[qualifiedName])
}

// FindCallees returns every method qualifiedName calls.
func (c *CodeIndex) FindCallees(qualifiedName string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSlice(c.forwardCalls[qualifiedName])
}

func (c *CodeIndex) FindHTTPProvider(verb lang.HTTPVerb, path string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.httpProviders[endpointKey(verb, path)]
	return p, ok
}

func (c *CodeIndex) FindHTTPConsumers(verb lang.HTTPVerb, path string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSlice(c.httpConsumers[endpointKey(verb, path)])
}

func (c *CodeIndex) FindKafkaProducers(topic string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSlice(c.kafkaProducers[topic])
}

func (c *CodeIndex) FindKafkaConsumers(topic string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSlice(c.kafkaConsumers[topic])
}

func (c *CodeIndex) FindDBReaders(table string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSlice(c.dbReaders[table])
}

func (c *CodeIndex) FindDBWriters(table string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSlice(c.dbWriters[table])
}

func (c *CodeIndex) FindRedisReaders(pattern string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSlice(c.redisReaders[pattern])
}

func (c *CodeIndex) FindRedisWriters(pattern string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSlice(c.redisWriters[pattern])
}

// FindInterfaceImplementations returns every class implementing iface.
func (c *CodeIndex) FindInterfaceImplementations(iface string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSlice(c.interfaceImplementations[iface])
}

// FindClassInterfaces returns every interface class implements.
func (c *CodeIndex) FindClassInterfaces(class string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSlice(c.classInterfaces[class])
}

// ClassOf returns everything before the last "::" of a method's
// qualified name ("Package.Class::method" -> "Package.Class",
// "module::function" -> "module"), or "" when there is no "::".
func ClassOf(qualifiedMethod string) string {
	for i := len(qualifiedMethod) - 1; i >= 1; i-- {
		if qualifiedMethod[i] == ':' && qualifiedMethod[i-1] == ':' {
			return qualifiedMethod[:i-1]
		}
	}
	return ""
}

// SimpleNameOf returns the method-name portion of a qualified name.
func SimpleNameOf(qualifiedMethod string) string {
	for i := len(qualifiedMethod) - 1; i >= 1; i-- {
		if qualifiedMethod[i] == ':' && qualifiedMethod[i-1] == ':' {
			return qualifiedMethod[i+1:]
		}
	}
	return qualifiedMethod
}

// ResolveInterfaceCall implements spec.md 4.D: given a call target I::m
// where I is recorded in interface_implementations with exactly one
// implementation class C, resolution returns C::m. Otherwise the
// original target is returned unchanged (B3, B4).
func (c *CodeIndex) ResolveInterfaceCall(target string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resolveInterfaceCallLocked(target)
}

func (c *CodeIndex) resolveInterfaceCallLocked(target string) string {
	iface := ClassOf(target)
	if iface == "" {
		return target
	}
	impls := c.interfaceImplementations[iface]
	if len(impls) != 1 {
		return target
	}
	return impls[0] + "::" + SimpleNameOf(target)
}

// InterfacesImplementedBy returns every interface implemented by the
// class owning qualifiedMethod.
func (c *CodeIndex) InterfacesImplementedBy(qualifiedMethod string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	class := ClassOf(qualifiedMethod)
	if class == "" {
		return nil
	}
	return cloneSlice(c.classInterfaces[class])
}

func cloneSlice(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
