package aspect

// Advice is what a rule does at a matched join point. Any combination of the hooks may be set; a zero
// Advice does nothing.
type Advice struct {
	Before func(jp JoinPoint)
	// After runs however the join point finishes, including by panic.
	After func(jp JoinPoint)
	// AfterReturning runs when the join point finishes without error or panic.
	AfterReturning func(jp JoinPoint, results []any)
	// Around replaces the join point. It continues to it by calling proceed, any number of times.
	Around func(jp JoinPoint, proceed Proceed) ([]any, error)
}

// After runs fn after the join point, however it finishes.
func After(fn func(jp JoinPoint)) Advice {
	return Advice{After: fn}
}

// AfterReturning runs fn with the results after the join point returns normally.
func AfterReturning(fn func(jp JoinPoint, results []any)) Advice {
	return Advice{AfterReturning: fn}
}

// Around runs fn in place of the join point.
func Around(fn func(jp JoinPoint, proceed Proceed) ([]any, error)) Advice {
	return Advice{Around: fn}
}

// Before runs fn before the join point.
func Before(fn func(jp JoinPoint)) Advice {
	return Advice{Before: fn}
}

func (a Advice) run(jp JoinPoint, proceed Proceed) ([]any, error) {
	if a.Before != nil {
		a.Before(jp)
	}

	if a.After != nil {
		defer a.After(jp)
	}

	var (
		results []any
		err     error
	)

	if a.Around != nil {
		results, err = a.Around(jp, proceed)
	} else {
		results, err = proceed(jp.Args)
	}

	if err == nil && a.AfterReturning != nil {
		a.AfterReturning(jp, results)
	}

	return results, err
}
