package main

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/inspectorat/core"
	"github.com/trezcool/inspectorat/core/catalog"
	appfs "github.com/trezcool/inspectorat/fs"
)

// catalogs are the reference lists the seed command fills.
type catalogs struct {
	provinces     *catalog.Service[catalog.Province]
	denominations *catalog.Service[catalog.Denomination]
	disciplines   *catalog.Service[catalog.Discipline]
}

type seedData struct {
	Provinces     []string `yaml:"provinces"`
	Denominations []struct {
		Name  string `yaml:"name"`
		Sigle string `yaml:"sigle"`
	} `yaml:"denominations"`
	Disciplines []struct {
		Name string `yaml:"name"`
		Code string `yaml:"code"`
	} `yaml:"disciplines"`
}

func readSeed(file string) (seedData, error) {
	var (
		raw []byte
		err error
	)
	if file == "" {
		raw, err = appfs.FS.ReadFile(appfs.DefaultSeedFile)
	} else {
		raw, err = os.ReadFile(file)
	}
	if err != nil {
		return seedData{}, errors.Wrap(err, "reading seed file")
	}

	var data seedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return seedData{}, errors.Wrap(err, "parsing seed file")
	}
	return data, nil
}

// existingNames returns the names already stored in coll.
func (cli *commandLine) existingNames(ctx context.Context, coll string) (map[string]bool, error) {
	entries, err := core.NewCollection[core.Named](cli.db, coll).Find(ctx, core.Query{})
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", coll)
	}
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name] = true
	}
	return names, nil
}

// seed creates the missing catalog entries; entries whose name is already stored are skipped.
func (cli *commandLine) seed(ctx context.Context, file string) error {
	data, err := readSeed(file)
	if err != nil {
		return err
	}

	var created int

	names, err := cli.existingNames(ctx, catalog.Provinces)
	if err != nil {
		return err
	}
	for _, name := range data.Provinces {
		if names[name] {
			continue
		}
		if _, err := cli.catalogs.provinces.Create(ctx, catalog.Province{Name: name}); err != nil {
			return errors.Wrapf(err, "creating province %q", name)
		}
		created++
	}

	if names, err = cli.existingNames(ctx, catalog.Denominations); err != nil {
		return err
	}
	for _, d := range data.Denominations {
		if names[d.Name] {
			continue
		}
		if _, err := cli.catalogs.denominations.Create(ctx, catalog.Denomination{Name: d.Name, Sigle: d.Sigle}); err != nil {
			return errors.Wrapf(err, "creating denomination %q", d.Name)
		}
		created++
	}

	if names, err = cli.existingNames(ctx, catalog.Disciplines); err != nil {
		return err
	}
	for _, d := range data.Disciplines {
		if names[d.Name] {
			continue
		}
		if _, err := cli.catalogs.disciplines.Create(ctx, catalog.Discipline{Name: d.Name, Code: d.Code}); err != nil {
			return errors.Wrapf(err, "creating discipline %q", d.Name)
		}
		created++
	}

	cli.logger.Info("seed done", map[string]interface{}{"created": created})
	return nil
}
