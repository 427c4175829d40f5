package prefetch

// RequestHandler transforms an outgoing request configuration. Returning nil
// keeps the current config.
type RequestHandler func(*RequestConfig) (*RequestConfig, error)

// RequestRecovery handles a failure raised by an earlier request stage. It
// may recover by returning a substitute configuration, or keep the chain
// failing by returning an error. Returning nil for both recovers with the
// configuration the failing stage received.
type RequestRecovery func(error) (*RequestConfig, error)

// RequestInterceptor is one stage of the request chain.
type RequestInterceptor struct {
	OnSuccess RequestHandler
	OnError   RequestRecovery
}

// ResponseHandler transforms a successful response. Returning nil keeps the
// current response.
type ResponseHandler func(*Response) (*Response, error)

// ResponseRecovery reacts to a failed request. It may rewrite the error by
// returning a replacement; returning nil keeps the current error. A failed
// call stays failed: recovery to a success value is a request-chain concern.
type ResponseRecovery func(error) error

// ResponseInterceptor is one stage of the response chain.
type ResponseInterceptor struct {
	OnSuccess ResponseHandler
	OnError   ResponseRecovery
}

// runRequestChain folds the request interceptors left-to-right over the
// configuration, each stage consuming the prior stage's result. A stage
// error routes to the next stage that carries an OnError handler; recovery
// resumes the chain with the substitute config, otherwise the error
// propagates past the chain.
func (c *Client) runRequestChain(cfg *RequestConfig) (*RequestConfig, error) {
	current := cfg
	var pending error
	for _, stage := range c.requestInterceptors {
		if pending != nil {
			if stage.OnError == nil {
				continue
			}
			recovered, err := stage.OnError(pending)
			if err != nil {
				pending = err
				continue
			}
			if recovered != nil {
				current = recovered
			}
			pending = nil
			continue
		}
		if stage.OnSuccess == nil {
			continue
		}
		next, err := stage.OnSuccess(current.Clone())
		if err != nil {
			pending = err
			continue
		}
		if next != nil {
			current = next
		}
	}
	if pending != nil {
		return nil, pending
	}
	return current, nil
}

// runResponseChain folds the response interceptors over a successful
// response. A stage error hands the remainder of the chain to the error
// path and fails the call.
func (c *Client) runResponseChain(resp *Response) (*Response, error) {
	current := resp
	for i, stage := range c.responseInterceptors {
		if stage.OnSuccess == nil {
			continue
		}
		next, err := stage.OnSuccess(current)
		if err != nil {
			return nil, c.runResponseErrorChain(err, i+1)
		}
		if next != nil {
			current = next
		}
	}
	return current, nil
}

// runResponseErrorChain invokes the OnError handlers from index from onward,
// giving each a chance to react to the failure or rewrite the error.
func (c *Client) runResponseErrorChain(err error, from int) error {
	if from > len(c.responseInterceptors) {
		return err
	}
	for _, stage := range c.responseInterceptors[from:] {
		if stage.OnError == nil {
			continue
		}
		if next := stage.OnError(err); next != nil {
			err = next
		}
	}
	return err
}
