package health

import (
	"errors"
	"strings"
	"sync"
)

type Checker interface {
	Check() error
}

// MultiChecker aggregates a set of checkers; it is healthy only when every
// member is healthy.
type MultiChecker struct {
	checkers []Checker
}

func NewMultiChecker(checkers ...Checker) *MultiChecker {
	return &MultiChecker{
		checkers: checkers,
	}
}

func (mc *MultiChecker) Add(checker Checker) {
	mc.checkers = append(mc.checkers, checker)
}

func (mc *MultiChecker) Check() error {
	errorStrings := []string{}
	for _, checker := range mc.checkers {
		err := checker.Check()
		if err != nil {
			errorStrings = append(errorStrings, err.Error())
		}
	}

	if len(errorStrings) == 0 {
		return nil
	}
	return errors.New(strings.Join(errorStrings, "\n"))
}

// StartupCompleteChecker reports unhealthy until MarkComplete is called.
type StartupCompleteChecker struct {
	mutex    sync.Mutex
	complete bool
}

func NewStartupCompleteChecker() *StartupCompleteChecker {
	return &StartupCompleteChecker{}
}

func (c *StartupCompleteChecker) MarkComplete() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.complete = true
}

func (c *StartupCompleteChecker) Check() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.complete {
		return errors.New("startup not yet complete")
	}
	return nil
}
