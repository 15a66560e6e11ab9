// Package factory provides a small generic registry used to instantiate named
// components from configuration. Components are selected by a type string and
// a map of raw settings; factories decode the settings into typed structs.
//
// Example usage:
//
//	reg := factory.NewRegistry[dispatch.Factory]()
//	reg.Register("self_consumption", func(conf map[string]any) (dispatch.Factory, error) {
//	    var c dispatch.SelfConsumptionConfig
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return dispatch.SelfConsumptionFactory(c), nil
//	})
//	f, err := reg.Create(factory.ModuleConfig{Type: "self_consumption"})
package factory
