package router

import (
	"errors"

	"github.com/Suhaibinator/SDispatch/pkg/common"
)

// lifecycleState is a state of the view lifecycle executor.
type lifecycleState int

const (
	stateBefore lifecycleState = iota
	stateHandling
	stateExceptionHandling
	stateAfter
	stateDone
)

// runView drives a matched route's view through its lifecycle:
//
//	Before   -> Handling | After (short-circuit) | ExceptionHandling (error)
//	Handling -> After | ExceptionHandling
//	ExceptionHandling -> Done with the recovered response | Done with error
//	After    -> Done
//
// A response recovered by OnException is final: the view's After hook has already been
// bypassed by the failure and does not run. An error from After is never offered to
// OnException.
func runView(req *common.Request, route *common.Route) common.Outcome {
	view := route.View
	state := stateBefore

	var resp *common.Response
	var raised error // error as returned by the view, handed to OnException
	var tagged error // same error tagged with its stage, propagated outward

	for state != stateDone {
		switch state {
		case stateBefore:
			if view.Before == nil {
				state = stateHandling
				continue
			}
			out := common.OutcomeOf(common.Protect(func() (*common.Response, error) {
				return view.Before(req)
			}))
			switch out.Kind {
			case common.Continue:
				state = stateHandling
			case common.ShortCircuit:
				resp = out.Response
				state = stateAfter
			case common.Raised:
				raised, tagged = out.Err, wrapStage(StageBefore, route, out.Err)
				state = stateExceptionHandling
			}

		case stateHandling:
			r, err := common.Protect(func() (*common.Response, error) {
				return view.Handle(req)
			})
			if err == nil && r == nil {
				err = ErrNilResponse
			}
			if err != nil {
				raised, tagged = err, wrapStage(StageHandler, route, err)
				state = stateExceptionHandling
				continue
			}
			resp = r
			state = stateAfter

		case stateExceptionHandling:
			if view.OnException == nil {
				return common.Fail(tagged)
			}
			r, err := common.Protect(func() (*common.Response, error) {
				return view.OnException(req, raised)
			})
			switch {
			case errors.Is(err, raised):
				// Re-raised, possibly wrapped. Uncomparable error values never match.
				return common.Fail(tagged)
			case err != nil:
				return common.Fail(wrapStage(StageOnException, route, err))
			case r == nil:
				return common.Fail(tagged)
			}
			return common.Respond(r)

		case stateAfter:
			if view.After != nil {
				current := resp
				r, err := common.Protect(func() (*common.Response, error) {
					return view.After(req, current)
				})
				if err != nil {
					return common.Fail(wrapStage(StageAfter, route, err))
				}
				if r != nil {
					resp = r
				}
			}
			state = stateDone
		}
	}

	return common.Respond(resp)
}
